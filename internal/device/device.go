package device

import (
	"fmt"

	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
)

// Modes accepted by Resolve.
const (
	ModeAuto = "auto"
	ModeCPU  = "cpu"
	ModeCUDA = "cuda"
)

// #region placement
// Placement decides where padded tensors live for the duration of one call.
type Placement interface {
	Name() string
	Place(ts ...*tensor.Int)
}

// Host keeps tensors in host memory.
type Host struct{}

func (Host) Name() string { return ModeCPU }

func (Host) Place(ts ...*tensor.Int) {
	for _, t := range ts {
		t.Place(ModeCPU)
	}
}

// Accelerator tags tensors for accelerator memory on the model server.
type Accelerator struct {
	Index int
}

func (a Accelerator) Name() string { return fmt.Sprintf("%s:%d", ModeCUDA, a.Index) }

func (a Accelerator) Place(ts ...*tensor.Int) {
	name := a.Name()
	for _, t := range ts {
		t.Place(name)
	}
}

// #endregion placement

// #region resolve
// Resolve turns a configured mode into a Placement. probe reports whether an
// accelerator is available and is only consulted in auto mode.
func Resolve(mode string, probe func() bool) (Placement, error) {
	switch mode {
	case ModeCPU:
		return Host{}, nil
	case ModeCUDA:
		return Accelerator{}, nil
	case ModeAuto, "":
		if probe != nil && probe() {
			return Accelerator{}, nil
		}
		return Host{}, nil
	default:
		return nil, fmt.Errorf("unknown device mode %q", mode)
	}
}

// #endregion resolve
