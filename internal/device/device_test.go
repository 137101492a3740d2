package device

import (
	"testing"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
)

func TestResolve(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	tests := []struct {
		mode  string
		probe func() bool
		want  string
	}{
		{ModeCPU, yes, "cpu"},
		{ModeCUDA, no, "cuda:0"},
		{ModeAuto, yes, "cuda:0"},
		{ModeAuto, no, "cpu"},
		{"", nil, "cpu"},
	}
	for _, tt := range tests {
		p, err := Resolve(tt.mode, tt.probe)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.mode, err)
		}
		if p.Name() != tt.want {
			t.Errorf("Resolve(%q) = %s, want %s", tt.mode, p.Name(), tt.want)
		}
	}
}

func TestResolveUnknownMode(t *testing.T) {
	if _, err := Resolve("tpu", nil); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestPlaceTagsTensors(t *testing.T) {
	a, b := tensor.NewInt(1), tensor.NewInt(2)
	Accelerator{Index: 1}.Place(a, b)
	if a.Device != "cuda:1" || b.Device != "cuda:1" {
		t.Fatalf("expected cuda:1, got %s and %s", a.Device, b.Device)
	}
	Host{}.Place(a)
	if a.Device != "cpu" {
		t.Fatalf("expected cpu, got %s", a.Device)
	}
}
