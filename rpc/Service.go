// Package rpc implements the gRPC transport of a learner. Messages are
// plain Go structs encoded as JSON, so the service needs no generated
// code.
package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/samuelfneumann/tdlearner/agent"
)

// ServiceName is the fully qualified name of the learner service
const ServiceName = "learner.Learner"

// ActRequest asks for an action in State
type ActRequest struct {
	State []float64 `json:"state"`
}

// ActResponse is the action selected and the ε it was selected with
type ActResponse = agent.ActResult

// TrainRequest is an outcome report
type TrainRequest struct {
	Eid    uint64    `json:"eid"`
	State  []float64 `json:"state"`
	Action int       `json:"action"`
	Reward float64   `json:"reward"`
}

// Empty is the request or response of calls without content
type Empty struct{}

// StatsResponse holds the runtime counters of the learner
type StatsResponse = agent.Stats

// LearnerServer is the server API of the learner service
type LearnerServer interface {
	Act(context.Context, *ActRequest) (*ActResponse, error)
	Train(context.Context, *TrainRequest) (*Empty, error)
	Reset(context.Context, *Empty) (*Empty, error)
	Stats(context.Context, *Empty) (*StatsResponse, error)
}

// RegisterLearnerServer registers srv with s
func RegisterLearnerServer(s *grpc.Server, srv LearnerServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LearnerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Act", Handler: actHandler},
		{MethodName: "Train", Handler: trainHandler},
		{MethodName: "Reset", Handler: resetHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "learner",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func actHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ActRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LearnerServer).Act(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Act")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LearnerServer).Act(ctx, req.(*ActRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func trainHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TrainRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LearnerServer).Train(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Train")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LearnerServer).Train(ctx, req.(*TrainRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func resetHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LearnerServer).Reset(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Reset")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LearnerServer).Reset(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv interface{}, ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LearnerServer).Stats(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Stats")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LearnerServer).Stats(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}
