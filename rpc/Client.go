package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/samuelfneumann/tdlearner/agent"
	"github.com/samuelfneumann/tdlearner/timestep"
)

// Client calls the learner service, typically from a scheduler which
// asks for decisions and reports their outcomes
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the learner service at target. Connections are
// plaintext unless opts add transport credentials.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	opts = append(opts,
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))

	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Act asks for an action in state
func (c *Client) Act(ctx context.Context, state []float64) (agent.ActResult, error) {
	out := new(ActResponse)
	err := c.conn.Invoke(ctx, fullMethod("Act"), &ActRequest{State: state}, out)
	return *out, err
}

// Train reports an outcome
func (c *Client) Train(ctx context.Context, ts timestep.TimeStep) error {
	in := &TrainRequest{
		Eid:    ts.Eid,
		State:  ts.State,
		Action: ts.Action,
		Reward: ts.Reward,
	}
	return c.conn.Invoke(ctx, fullMethod("Train"), in, new(Empty))
}

// Reset resets the learner
func (c *Client) Reset(ctx context.Context) error {
	return c.conn.Invoke(ctx, fullMethod("Reset"), &Empty{}, new(Empty))
}

// Stats returns the runtime counters of the learner
func (c *Client) Stats(ctx context.Context) (agent.Stats, error) {
	out := new(StatsResponse)
	err := c.conn.Invoke(ctx, fullMethod("Stats"), &Empty{}, out)
	return *out, err
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
