// Package api exposes verification as an HTTP service: submissions create
// asynchronous jobs identified by a GUID, mirroring the job tracking of
// the explorer APIs this tool itself talks to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/0xmhha/verify-go/storage"
	"github.com/0xmhha/verify-go/verify"
)

// Config holds API server configuration.
type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address cannot be empty")
	}
	return nil
}

// JobState is the lifecycle state of a verification job.
type JobState string

const (
	// JobPending means the job is still running against the back-ends.
	JobPending JobState = "pending"

	// JobDone means every back-end reported an outcome.
	JobDone JobState = "done"
)

// Job tracks one asynchronous verification request.
type Job struct {
	GUID      string           `json:"guid"`
	State     JobState         `json:"state"`
	Address   string           `json:"address"`
	Outcomes  []BackendOutcome `json:"outcomes,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// BackendOutcome is one back-end's serialized result.
type BackendOutcome struct {
	Backend         string `json:"backend"`
	Success         bool   `json:"success"`
	AlreadyVerified bool   `json:"already_verified,omitempty"`
	ContractName    string `json:"contract_name,omitempty"`
	CompilerVersion string `json:"compiler_version,omitempty"`
	URL             string `json:"url,omitempty"`
	Message         string `json:"message,omitempty"`
	Error           string `json:"error,omitempty"`
}

// verifyRequest is the POST /api/v1/verify body.
type verifyRequest struct {
	Address              string            `json:"address"`
	ContractName         string            `json:"contract_name,omitempty"`
	Libraries            map[string]string `json:"libraries,omitempty"`
	ConstructorArguments string            `json:"constructor_arguments,omitempty"`
}

// Server is the verification HTTP service.
type Server struct {
	config   *Config
	logger   *zap.Logger
	network  string
	backends []verify.Backend
	records  storage.RecordWriter

	router *chi.Mux
	server *http.Server

	jobs   map[string]*Job
	jobsMu sync.RWMutex
}

// NewServer creates the service. records may be nil to disable
// persistence.
func NewServer(config *Config, network string, backends []verify.Backend, records storage.RecordWriter, logger *zap.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		network:  network,
		backends: backends,
		records:  records,
		router:   chi.NewRouter(),
		jobs:     make(map[string]*Job),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/verify", s.handleSubmit)
		r.Get("/verify/{guid}", s.handleStatus)
	})
}

// handleSubmit accepts a verification request and starts it in the
// background, returning the job GUID.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		s.writeError(w, http.StatusBadRequest, "missing address")
		return
	}
	if !common.IsHexAddress(req.Address) {
		s.writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	job := &Job{
		GUID:      uuid.New().String(),
		State:     JobPending,
		Address:   req.Address,
		CreatedAt: time.Now().UTC(),
	}

	s.jobsMu.Lock()
	s.jobs[job.GUID] = job
	s.jobsMu.Unlock()

	go s.runJob(job, &verify.Request{
		Address:              req.Address,
		ContractName:         req.ContractName,
		Libraries:            req.Libraries,
		ConstructorArguments: req.ConstructorArguments,
	})

	s.logger.Info("verification job accepted",
		zap.String("guid", job.GUID),
		zap.String("address", req.Address))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"guid": job.GUID})
}

// handleStatus reports a job's state and outcomes.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "guid")

	s.jobsMu.RLock()
	job, ok := s.jobs[guid]
	s.jobsMu.RUnlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown guid")
		return
	}

	s.jobsMu.RLock()
	payload, err := json.Marshal(job)
	s.jobsMu.RUnlock()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to encode job")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// runJob drives the request through every back-end and records the
// outcomes.
func (s *Server) runJob(job *Job, req *verify.Request) {
	results := verify.VerifyAll(context.Background(), s.backends, req)

	outcomes := make([]BackendOutcome, len(results))
	for i, result := range results {
		outcome := BackendOutcome{Backend: result.Backend}
		if result.Err != nil {
			outcome.Error = result.Err.Error()
		}
		if result.Result != nil {
			outcome.Success = result.Result.Success
			outcome.AlreadyVerified = result.Result.AlreadyVerified
			outcome.ContractName = result.Result.ContractName
			outcome.CompilerVersion = result.Result.CompilerVersion
			outcome.URL = result.Result.URL
			outcome.Message = result.Result.Message
		}
		outcomes[i] = outcome

		s.persistOutcome(req, &outcome)
	}

	s.jobsMu.Lock()
	job.Outcomes = outcomes
	job.State = JobDone
	s.jobsMu.Unlock()

	s.logger.Info("verification job finished",
		zap.String("guid", job.GUID),
		zap.Int("backends", len(outcomes)))
}

func (s *Server) persistOutcome(req *verify.Request, outcome *BackendOutcome) {
	if s.records == nil {
		return
	}

	record := &storage.VerificationRecord{
		Network:         s.network,
		Address:         common.HexToAddress(req.Address),
		Explorer:        outcome.Backend,
		ContractName:    outcome.ContractName,
		CompilerVersion: outcome.CompilerVersion,
		Success:         outcome.Success,
		AlreadyVerified: outcome.AlreadyVerified,
		Message:         outcome.Message,
		URL:             outcome.URL,
		VerifiedAt:      time.Now().UTC(),
	}
	if outcome.Error != "" {
		record.Message = outcome.Error
	}

	if err := s.records.SetRecord(context.Background(), record); err != nil {
		s.logger.Warn("failed to persist verification record",
			zap.String("address", req.Address),
			zap.String("backend", outcome.Backend),
			zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("address", s.config.ListenAddr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
