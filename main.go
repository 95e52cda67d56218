package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/samuelfneumann/tdlearner/agent"
	_ "github.com/samuelfneumann/tdlearner/agent/online"
	"github.com/samuelfneumann/tdlearner/api"
	"github.com/samuelfneumann/tdlearner/config"
	"github.com/samuelfneumann/tdlearner/metrics"
	"github.com/samuelfneumann/tdlearner/rpc"
	"github.com/samuelfneumann/tdlearner/utils/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	static, err := config.LoadStatic(os.Args[1:], nil)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(static.IsDevelopment(), static.Verbosity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger = logger.WithName(config.AppName)
	logger.Info("Starting", "version", config.AppVersion,
		"http", static.HTTPAddress(), "grpc", static.GRPCAddress(),
		"dirData", static.DirData, "environment", static.RunningEnvironment)

	metrics.Register()

	store, err := config.OpenParameterStore(static.DirData)
	if err != nil {
		logging.Fatal(logger, err, "Failed to open the parameter journal")
	}
	defer store.Close()

	learner := newLearner(logger, store)
	if err := learner.Start(); err != nil {
		logging.Fatal(logger, err, "Failed to start the learner")
	}
	defer learner.Stop()

	t := learner.Type()
	err = store.Save(config.Record{
		Name:       string(t),
		Parameters: learner.Parameters().Map(t),
	})
	if err != nil {
		logging.Fatal(logger, err, "Failed to save the learner parameters")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT,
		syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    static.HTTPAddress(),
		Handler: api.NewServer(learner, store, logger),
	}
	grpcServer := rpc.NewServer(learner, logger).NewGRPCServer()

	errs := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errs <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", static.GRPCAddress())
		if err != nil {
			errs <- fmt.Errorf("grpc: %w", err)
			return
		}
		logger.Info("gRPC server listening", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != grpc.ErrServerStopped {
			errs <- fmt.Errorf("grpc: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errs:
		logger.Error(err, "Server failed, shutting down")
	}

	shutdown(logger, httpServer, grpcServer)
}

// newLearner creates the learner named by the parameter journal, with
// the journaled parameters merged over the defaults
func newLearner(logger logr.Logger, store *config.ParameterStore) agent.Agent {
	record, found, err := store.Load()
	if err != nil {
		logging.Fatal(logger, err, "Failed to load the learner parameters",
			"path", store.Path())
	}
	if !found {
		logger.Info("No saved learner parameters, using defaults",
			"path", store.Path())
	}

	params, unknown, err := agent.Defaults().Merge(record.Parameters)
	if err != nil {
		logging.Fatal(logger, err, "Invalid saved learner parameters")
	}
	if len(unknown) > 0 {
		logger.Info("Ignoring unknown saved parameters", "keys", unknown)
	}

	learner, err := agent.New(record.Name, params, logger)
	if err != nil {
		logging.Fatal(logger, err, "Failed to create the learner",
			"name", record.Name, "registered", agent.Types())
	}
	return learner
}

func shutdown(logger logr.Logger, httpServer *http.Server,
	grpcServer *grpc.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(err, "HTTP server shutdown failed")
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
	}
}
