// Package server exposes debugging runs over HTTP. A POST starts a run and
// streams its live transcript back chunk by chunk, so a caller can watch
// the oracle drive the debugger in real time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d0rbu/llamastack-austin/internal/loop"
	"github.com/d0rbu/llamastack-austin/internal/oracle"
	"github.com/d0rbu/llamastack-austin/internal/store"
	"github.com/d0rbu/llamastack-austin/internal/stream"
)

// ProviderFactory builds the oracle provider for one run. The model ID comes
// from the request and may be empty.
type ProviderFactory func(model string) oracle.Provider

// Config holds server settings.
type Config struct {
	Addr        string
	MaxSessions int     // concurrent debug runs, default 4
	Rate        float64 // new runs per second, default 1

	Loop   loop.Config // per-run defaults, Executable and BugDescription ignored
	Logger *zap.SugaredLogger
}

// Server is the streaming HTTP front-end.
type Server struct {
	cfg         Config
	newProvider ProviderFactory
	limiter     *rate.Limiter
	sessions    chan struct{}
	store       *store.Store
	httpServer  *http.Server
}

// New builds a server. The store is optional; when present every finished
// run is persisted.
func New(cfg Config, factory ProviderFactory, st *store.Store) *Server {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 4
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	return &Server{
		cfg:         cfg,
		newProvider: factory,
		limiter:     rate.NewLimiter(rate.Limit(cfg.Rate), cfg.MaxSessions),
		sessions:    make(chan struct{}, cfg.MaxSessions),
		store:       st,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /debug_target", s.handleDebugTarget)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// ListenAndServe serves until ctx is canceled, then drains with a short
// shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type debugRequest struct {
	Executable     string `json:"executable"`
	BugDescription string `json:"bug_description"`
	ModelID        string `json:"model_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"active_sessions": len(s.sessions),
		"max_sessions":    cap(s.sessions),
	})
}

func (s *Server) handleDebugTarget(w http.ResponseWriter, r *http.Request) {
	var req debugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Executable == "" || req.BugDescription == "" {
		s.writeError(w, http.StatusBadRequest, "executable and bug_description are required")
		return
	}
	if _, err := os.Stat(req.Executable); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("executable not found: %s", req.Executable))
		return
	}

	if !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
		return
	}

	select {
	case s.sessions <- struct{}{}:
	default:
		s.writeError(w, http.StatusServiceUnavailable, "all debug sessions busy")
		return
	}
	defer func() { <-s.sessions }()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	cfg := s.cfg.Loop
	cfg.Executable = req.Executable
	cfg.BugDescription = req.BugDescription
	cfg.Logger = s.cfg.Logger

	tap := stream.NewQueue(0)
	cfg.Tap = tap

	ctrl := loop.New(cfg, s.newProvider(req.ModelID))

	done := make(chan *loop.Outcome, 1)
	go func() {
		out := ctrl.Run(r.Context())
		tap.Close()
		done <- out
	}()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for chunk := range tap.Chunks() {
		if _, err := fmt.Fprint(w, chunk); err != nil {
			// Client went away; the run keeps going until its own
			// context notices.
			break
		}
		flusher.Flush()
	}

	out := <-done
	fmt.Fprintf(w, "\n[run %s] status=%s steps=%d\n", out.RunID, out.Status, out.StepsAttempted)
	flusher.Flush()

	if s.store != nil {
		if err := s.store.SaveOutcome(out); err != nil {
			s.cfg.Logger.Warnw("Failed to persist run", "runId", out.RunID, "error", err)
		}
	}
	s.cfg.Logger.Infow("Debug run finished",
		"runId", out.RunID,
		"status", out.Status,
		"steps", out.StepsAttempted,
	)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
