// Package api implements the HTTP transport of a learner: decisions
// through /act, outcome reports through /train and /train_batch, and
// the administration of the learner under /learner.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/goccy/go-json"
	"go.uber.org/multierr"

	"github.com/samuelfneumann/tdlearner/agent"
	"github.com/samuelfneumann/tdlearner/buffer/episode"
	"github.com/samuelfneumann/tdlearner/config"
	"github.com/samuelfneumann/tdlearner/metrics"
	"github.com/samuelfneumann/tdlearner/utils/logging"
)

// maxBatchBytes bounds the body of a training batch
const maxBatchBytes = 32 << 20

// ParameterSaver persists the hyperparameters of a learner
type ParameterSaver interface {
	Save(config.Record) error
}

// Server serves a single Agent over HTTP
type Server struct {
	learner agent.Agent
	store   ParameterSaver
	logger  logr.Logger
	mux     *http.ServeMux
}

// NewServer returns a new Server for learner. Successful parameter
// updates are saved to store, which may be nil.
func NewServer(learner agent.Agent, store ParameterSaver,
	logger logr.Logger) *Server {
	s := &Server{
		learner: learner,
		store:   store,
		logger:  logger.WithName("api"),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/", s.banner)
	s.mux.HandleFunc("/act", s.act)
	s.mux.HandleFunc("/train", s.train)
	s.mux.HandleFunc("/train_batch", s.trainBatch)
	s.mux.HandleFunc("/learner/parameters", s.parameters)
	s.mux.HandleFunc("/learner/stats", s.stats)
	s.mux.HandleFunc("/learner/weights", s.weights)
	s.mux.HandleFunc("/learner/reset", s.reset)
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

// ServeHTTP satisfies the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) banner(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, "This is %s v%s.", config.AppName, config.AppVersion)
}

func (s *Server) act(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	state, err := ParseState(r.Header.Get(HeaderState))
	if err != nil {
		s.fail(w, "act", err)
		return
	}

	res, err := s.learner.Act(state)
	if err != nil {
		s.fail(w, "act", err)
		return
	}
	s.logger.V(logging.TRACE).Info("Acted", "state", state,
		"action", res.Action, "eps", res.Eps)

	w.Header().Set(HeaderEpsilon, strconv.FormatFloat(res.Eps, 'f', -1, 64))
	fmt.Fprintf(w, "%d", res.Action)
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	ts, err := ParseTimeStep(r.Header)
	if err != nil {
		s.fail(w, "train", err)
		return
	}

	if err := s.learner.Train(r.Context(), ts); err != nil {
		s.fail(w, "train", err)
		return
	}
	s.logger.V(logging.TRACE).Info("Submitted entry", "timestep", ts)

	io.WriteString(w, "ok")
}

func (s *Server) trainBatch(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		s.fail(w, "train_batch", &ParseError{"batch", "body", err})
		return
	}

	batch, err := ParseBatch(body)
	if err != nil {
		s.fail(w, "train_batch", err)
		return
	}

	// Duplicates and entries the learner rejects, such as an action
	// beyond actions_n, are skipped without failing the batch. Submitted
	// entries are never rolled back.
	var duplicates, rejected error
	for _, ts := range batch {
		err := s.learner.Train(r.Context(), ts)
		switch {
		case err == nil:
		case episode.IsDuplicate(err):
			duplicates = multierr.Append(duplicates, err)
		case errors.Is(err, agent.ErrInvalidEntry):
			rejected = multierr.Append(rejected, err)
		default:
			s.fail(w, "train_batch", err)
			return
		}
	}

	if duplicates != nil {
		s.logger.Info("Batch contained duplicate entries",
			"batch", len(batch),
			"duplicates", len(multierr.Errors(duplicates)),
			"error", duplicates.Error())
	}
	if rejected != nil {
		s.logger.Info("Batch contained entries rejected by the learner",
			"batch", len(batch),
			"rejected", len(multierr.Errors(rejected)),
			"error", rejected.Error())
	}
	s.logger.V(logging.DEBUG).Info("Submitted batch", "entries", len(batch))

	io.WriteString(w, "ok")
}

// parametersResponse describes the learner and its hyperparameters
type parametersResponse struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (s *Server) parameters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.describe())

	case http.MethodPost:
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			s.fail(w, "parameters", &ParseError{"parameters", "body", err})
			return
		}

		if _, err := s.learner.SetParameters(raw); err != nil {
			s.fail(w, "parameters", err)
			return
		}

		current := s.describe()
		if s.store != nil {
			err := s.store.Save(config.Record{
				Name:       current.Name,
				Parameters: current.Parameters,
			})
			if err != nil {
				s.fail(w, "parameters", err)
				return
			}
		}
		s.logger.Info("Updated learner parameters", "parameters",
			current.Parameters)
		s.writeJSON(w, current)

	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed),
			http.StatusMethodNotAllowed)
	}
}

func (s *Server) describe() parametersResponse {
	t := s.learner.Type()
	return parametersResponse{
		Name:       string(t),
		Parameters: s.learner.Parameters().Map(t),
	}
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, s.learner.Stats())
}

func (s *Server) weights(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	weights, err := s.learner.Weights()
	if err != nil {
		s.fail(w, "weights", err)
		return
	}
	s.writeJSON(w, weights)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if err := s.learner.Reset(); err != nil {
		s.fail(w, "reset", err)
		return
	}
	s.logger.Info("Learner reset")
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.fail(w, "encode", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// fail logs err and writes the status it maps to
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(err, "Request failed", "op", op, "status", status)
	} else {
		s.logger.V(logging.VERBOSE).Info("Request rejected", "op", op,
			"status", status, "error", err.Error())
	}
	http.Error(w, err.Error(), status)
}

// StatusCode returns the HTTP status reporting err
func StatusCode(err error) int {
	var parseErr *ParseError
	switch {
	case errors.As(err, &parseErr),
		errors.Is(err, agent.ErrInvalidEntry),
		agent.IsConfigError(err):
		return http.StatusBadRequest

	case episode.IsDuplicate(err):
		return http.StatusConflict

	case errors.Is(err, agent.ErrNotRunning), episode.IsClosed(err):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed),
		http.StatusMethodNotAllowed)
	return false
}
