package codec

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/relgraph-tagger/internal/model"
	"github.com/danielpatrickdp/relgraph-tagger/internal/tensor"
)

// Full method names served by the Python inference process.
const (
	ForwardMethod      = "/relgraph.TaggerService/Forward"
	CapabilitiesMethod = "/relgraph.TaggerService/Capabilities"
)

// #region types
// Capabilities describes the remote network.
type Capabilities struct {
	Accelerator bool
	SentWidth   int
	ActWidth    int
	Passes      int
}

// #endregion types

// #region client-struct
// Client runs the encoder and decoder behind a gRPC connection. Requests and
// responses are structpb.Struct messages carrying {shape, data, device} tensors.
type Client struct {
	conn   *grpc.ClientConn
	invoke grpc.ClientConnInterface
}

var _ model.Network = (*Client)(nil)

// #endregion client-struct

// #region constructor
// NewClient connects to the inference server at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, invoke: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing without a real gRPC server.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{invoke: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the Client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region forward
// Forward sends the padded batch and returns one score tensor per pass for
// each label space.
func (c *Client) Forward(ctx context.Context, in model.Inputs) (model.Stacks, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"tokens":     intValue(in.Tokens),
		"mask":       intValue(in.Mask),
		"local":      intValue(in.Local),
		"full":       intValue(in.Full),
		"relational": intValue(in.Relational),
		"turn_lens":  nestedValue(in.TurnLens),
	}}
	resp := &structpb.Struct{}
	if err := c.invoke.Invoke(ctx, ForwardMethod, req, resp); err != nil {
		return model.Stacks{}, fmt.Errorf("forward rpc: %w", err)
	}

	sent, err := floatStack(resp.Fields["sent"])
	if err != nil {
		return model.Stacks{}, fmt.Errorf("decode sentiment stack: %w", err)
	}
	act, err := floatStack(resp.Fields["act"])
	if err != nil {
		return model.Stacks{}, fmt.Errorf("decode act stack: %w", err)
	}
	return model.Stacks{Sent: sent, Act: act}, nil
}

// #endregion forward

// #region capabilities
// Capabilities asks the server what it runs on and how wide its outputs are.
func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	resp := &structpb.Struct{}
	if err := c.invoke.Invoke(ctx, CapabilitiesMethod, &structpb.Struct{}, resp); err != nil {
		return Capabilities{}, fmt.Errorf("capabilities rpc: %w", err)
	}
	f := resp.Fields
	return Capabilities{
		Accelerator: f["accelerator"].GetBoolValue(),
		SentWidth:   int(f["sent_width"].GetNumberValue()),
		ActWidth:    int(f["act_width"].GetNumberValue()),
		Passes:      int(f["passes"].GetNumberValue()),
	}, nil
}

// Probe returns an accelerator probe for device.Resolve. An unreachable
// server reports no accelerator.
func (c *Client) Probe(ctx context.Context) func() bool {
	return func() bool {
		caps, err := c.Capabilities(ctx)
		return err == nil && caps.Accelerator
	}
}

// #endregion capabilities

// #region wire
func intValue(t *tensor.Int) *structpb.Value {
	if t == nil {
		return structpb.NewNullValue()
	}
	data := make([]*structpb.Value, len(t.Data))
	for i, v := range t.Data {
		data[i] = structpb.NewNumberValue(float64(v))
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"shape":  shapeValue(t.Shape),
		"data":   structpb.NewListValue(&structpb.ListValue{Values: data}),
		"device": structpb.NewStringValue(t.Device),
	}})
}

func shapeValue(shape []int) *structpb.Value {
	vs := make([]*structpb.Value, len(shape))
	for i, s := range shape {
		vs[i] = structpb.NewNumberValue(float64(s))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vs})
}

func nestedValue(xs [][]int) *structpb.Value {
	outer := make([]*structpb.Value, len(xs))
	for i, row := range xs {
		outer[i] = shapeValue(row)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: outer})
}

func floatStack(v *structpb.Value) ([]*tensor.Float, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, errors.New("missing stack list")
	}
	out := make([]*tensor.Float, len(list.Values))
	for j, item := range list.Values {
		t, err := floatValue(item)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", j, err)
		}
		out[j] = t
	}
	return out, nil
}

func floatValue(v *structpb.Value) (*tensor.Float, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, errors.New("tensor is not a struct")
	}
	rawShape := s.Fields["shape"].GetListValue()
	rawData := s.Fields["data"].GetListValue()
	if rawShape == nil || rawData == nil {
		return nil, errors.New("tensor missing shape or data")
	}
	shape := make([]int, len(rawShape.Values))
	for i, d := range rawShape.Values {
		n, ok := d.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("shape entry %d is not a number", i)
		}
		v := n.NumberValue
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return nil, fmt.Errorf("shape entry %d is %v, want a non-negative integer", i, v)
		}
		shape[i] = int(v)
	}
	data := make([]float64, len(rawData.Values))
	for i, d := range rawData.Values {
		data[i] = d.GetNumberValue()
	}
	return tensor.FromFloats(data, shape...)
}

// #endregion wire
