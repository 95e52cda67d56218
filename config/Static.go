// Package config loads the process configuration of the learner
// service and persists learner hyperparameters across restarts
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/magiconair/properties"
	"github.com/spf13/pflag"
)

const (
	AppName    = "p2pfaas-learner"
	AppVersion = "0.0.1b"
)

// Environment variables overriding the properties file
const (
	EnvListeningHost      = "P2PFAAS_LISTENING_HOST"
	EnvListeningPort      = "P2PFAAS_LISTENING_PORT"
	EnvGRPCPort           = "P2PFAAS_GRPC_PORT"
	EnvDirData            = "P2PFAAS_DIR_DATA"
	EnvRunningEnvironment = "P2PFAAS_RUNNING_ENVIRONMENT"
)

// Keys of the properties file
const (
	keyListeningHost      = "listening_host"
	keyListeningPort      = "listening_port"
	keyGRPCPort           = "grpc_port"
	keyDirData            = "dir_data"
	keyRunningEnvironment = "running_environment"
	keyVerbosity          = "verbosity"
)

// Development is the running environment which enables human readable
// logs
const Development = "development"

// Static is the configuration of the process, fixed at startup
type Static struct {
	ListeningHost      string
	ListeningPort      int
	GRPCPort           int
	DirData            string
	RunningEnvironment string
	Verbosity          int
	PropertiesFile     string
}

// DefaultStatic returns the default Static configuration
func DefaultStatic() Static {
	return Static{
		ListeningHost:      "0.0.0.0",
		ListeningPort:      19020,
		GRPCPort:           19021,
		DirData:            "/data",
		RunningEnvironment: "production",
	}
}

// IsDevelopment returns whether the process runs in the development
// environment
func (s Static) IsDevelopment() bool {
	return s.RunningEnvironment == Development
}

// HTTPAddress returns the address the HTTP server listens on
func (s Static) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", s.ListeningHost, s.ListeningPort)
}

// GRPCAddress returns the address the gRPC server listens on
func (s Static) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", s.ListeningHost, s.GRPCPort)
}

// LoadStatic builds the Static configuration from, in increasing order
// of precedence, the defaults, the properties file named by --config,
// the environment and the command line flags in args. A nil getenv
// reads the process environment.
func LoadStatic(args []string, getenv func(string) string) (Static, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	s := DefaultStatic()

	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.StringVar(&s.PropertiesFile, "config", "", "path of a .properties configuration file")
	host := fs.String("host", s.ListeningHost, "address to listen on")
	port := fs.Int("port", s.ListeningPort, "HTTP port")
	grpcPort := fs.Int("grpc-port", s.GRPCPort, "gRPC port")
	dirData := fs.String("data-dir", s.DirData, "directory of persisted learner parameters")
	env := fs.String("env", s.RunningEnvironment, "running environment (production or development)")
	verbosity := fs.IntP("verbosity", "v", s.Verbosity, "log verbosity")

	if err := fs.Parse(args); err != nil {
		return s, fmt.Errorf("config: loadStatic: %w", err)
	}

	if s.PropertiesFile != "" {
		p, err := properties.LoadFile(s.PropertiesFile, properties.UTF8)
		if err != nil {
			return s, fmt.Errorf("config: loadStatic: %w", err)
		}
		s.ListeningHost = p.GetString(keyListeningHost, s.ListeningHost)
		s.ListeningPort = p.GetInt(keyListeningPort, s.ListeningPort)
		s.GRPCPort = p.GetInt(keyGRPCPort, s.GRPCPort)
		s.DirData = p.GetString(keyDirData, s.DirData)
		s.RunningEnvironment = p.GetString(keyRunningEnvironment, s.RunningEnvironment)
		s.Verbosity = p.GetInt(keyVerbosity, s.Verbosity)
	}

	if v := getenv(EnvListeningHost); v != "" {
		s.ListeningHost = v
	}
	if v := getenv(EnvDirData); v != "" {
		s.DirData = v
	}
	if v := getenv(EnvRunningEnvironment); v != "" {
		s.RunningEnvironment = v
	}
	for _, e := range []struct {
		name  string
		field *int
	}{
		{EnvListeningPort, &s.ListeningPort},
		{EnvGRPCPort, &s.GRPCPort},
	} {
		v := getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("config: loadStatic: %s: %w", e.name, err)
		}
		*e.field = n
	}

	if fs.Changed("host") {
		s.ListeningHost = *host
	}
	if fs.Changed("port") {
		s.ListeningPort = *port
	}
	if fs.Changed("grpc-port") {
		s.GRPCPort = *grpcPort
	}
	if fs.Changed("data-dir") {
		s.DirData = *dirData
	}
	if fs.Changed("env") {
		s.RunningEnvironment = *env
	}
	if fs.Changed("verbosity") {
		s.Verbosity = *verbosity
	}

	return s, nil
}
