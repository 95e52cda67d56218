package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/samuelfneumann/tdlearner/agent"
	"github.com/samuelfneumann/tdlearner/buffer/episode"
	"github.com/samuelfneumann/tdlearner/timestep"
	"github.com/samuelfneumann/tdlearner/utils/logging"
)

// Server serves a single Agent over gRPC
type Server struct {
	learner agent.Agent
	logger  logr.Logger
}

// NewServer returns a new Server for learner
func NewServer(learner agent.Agent, logger logr.Logger) *Server {
	return &Server{learner: learner, logger: logger.WithName("rpc")}
}

// NewGRPCServer returns a grpc.Server with the learner service
// registered on it
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.UnaryInterceptor(s.log),
	)

	svr := grpc.NewServer(opts...)
	RegisterLearnerServer(svr, s)
	return svr
}

// Act selects an action
func (s *Server) Act(_ context.Context, in *ActRequest) (*ActResponse, error) {
	res, err := s.learner.Act(in.State)
	if err != nil {
		return nil, Status(err)
	}
	return &res, nil
}

// Train submits an outcome report
func (s *Server) Train(ctx context.Context, in *TrainRequest) (*Empty, error) {
	ts := timestep.New(in.Eid, in.State, in.Action, in.Reward)
	if err := s.learner.Train(ctx, ts); err != nil {
		return nil, Status(err)
	}
	return &Empty{}, nil
}

// Reset discards all learned state of the learner
func (s *Server) Reset(context.Context, *Empty) (*Empty, error) {
	if err := s.learner.Reset(); err != nil {
		return nil, Status(err)
	}
	s.logger.Info("Learner reset")
	return &Empty{}, nil
}

// Stats returns the runtime counters of the learner
func (s *Server) Stats(context.Context, *Empty) (*StatsResponse, error) {
	stats := s.learner.Stats()
	return &stats, nil
}

func (s *Server) log(ctx context.Context, req interface{},
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	res, err := handler(ctx, req)

	logger := s.logger.V(logging.TRACE)
	if err != nil && status.Code(err) == codes.Internal {
		logger = s.logger
	}
	logger.Info("Handled call", "method", info.FullMethod,
		"code", status.Code(err).String(), "duration", time.Since(start))

	return res, err
}

// Status converts err to the gRPC status reporting it
func Status(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, agent.ErrInvalidEntry):
		code = codes.InvalidArgument
	case episode.IsDuplicate(err):
		code = codes.AlreadyExists
	case errors.Is(err, agent.ErrNotRunning), episode.IsClosed(err):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
