// Package dashboard serves the tracked state over HTTP and can run tracking
// cycles on a schedule.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"igtracker/pkg/config"
	"igtracker/pkg/logger"
	"igtracker/pkg/metrics"
	"igtracker/pkg/report"
	"igtracker/pkg/runstate"
	"igtracker/pkg/store"
)

// CycleFunc runs one tracking cycle
type CycleFunc func(ctx context.Context) error

const shutdownTimeout = 10 * time.Second

var (
	errCycleRunning = errors.New("a cycle is already running")
	errShuttingDown = errors.New("server is shutting down")
)

// Server is the dashboard HTTP server
type Server struct {
	cfg    *config.Config
	store  store.Store
	runs   *runstate.Manager
	cycle  CycleFunc
	logger logger.Logger
	router *chi.Mux

	// cycles run under cycleCtx so shutdown can cancel and wait for them
	cycleCtx   context.Context
	stopCycles context.CancelFunc
	cycles     sync.WaitGroup
	cycleMu    sync.Mutex
	running    bool
	closed     bool
}

// New builds the server and its routes. runs and cycle may be nil.
func New(cfg *config.Config, st store.Store, runs *runstate.Manager, cycle CycleFunc, log logger.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		runs:   runs,
		cycle:  cycle,
		logger: logger.ForComponent(log, "dashboard"),
	}
	s.cycleCtx, s.stopCycles = context.WithCancel(context.Background())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/history", s.handleHistory)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/accounts", s.handleAccounts)
		r.Get("/history", s.handleHistoryJSON)
		r.Get("/status", s.handleStatus)
		r.Post("/cycle", s.handleCycle)
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	s.router = r
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled. With a cycle function and a positive
// CycleInterval it also runs a cycle on every tick. Before returning it
// cancels any cycle in flight and waits for it, up to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cycle != nil && s.cfg.Server.CycleInterval > 0 {
		go s.schedule(ctx, s.cfg.Server.CycleInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("Dashboard listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.drainCycles(drainCtx)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Dashboard shutting down")
	err := srv.Shutdown(shutdownCtx)
	s.drainCycles(shutdownCtx)
	return err
}

// drainCycles refuses new cycles, cancels the running one and waits for it
// to return or for ctx to expire.
func (s *Server) drainCycles(ctx context.Context) {
	s.cycleMu.Lock()
	s.closed = true
	running := s.running
	s.cycleMu.Unlock()
	s.stopCycles()

	if !running {
		return
	}
	s.logger.Info("Waiting for running cycle to stop")

	done := make(chan struct{})
	go func() {
		s.cycles.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Cycle did not stop before the shutdown timeout")
	}
}

func (s *Server) schedule(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.startCycle(); err != nil {
				s.logger.WithError(err).Debug("Skipping scheduled cycle")
			}
		}
	}
}

// startCycle runs a cycle in the background unless one is already running
// or the server is shutting down.
func (s *Server) startCycle() error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if s.closed {
		return errShuttingDown
	}
	if s.running {
		return errCycleRunning
	}
	s.running = true
	s.cycles.Add(1)

	go func() {
		defer s.cycles.Done()
		defer func() {
			s.cycleMu.Lock()
			s.running = false
			s.cycleMu.Unlock()
		}()
		if err := s.cycle(s.cycleCtx); err != nil {
			s.logger.WithError(err).Warn("Cycle failed")
		}
	}()
	return nil
}

// CycleRunning reports whether a cycle is in progress
func (s *Server) CycleRunning() bool {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.running
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugWithFields("HTTP request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

func (s *Server) lastRun() *runstate.Run {
	if s.runs == nil {
		return nil
	}
	run, err := s.runs.Load()
	if err != nil {
		s.logger.WithError(err).Warn("Could not read last cycle")
		return nil
	}
	return run
}

func (s *Server) data(ctx context.Context) (*report.Data, error) {
	return report.FromStore(ctx, s.store, report.Options{
		Username:     s.cfg.Instagram.Username,
		RecentEvents: s.cfg.Server.RecentEvents,
		LastRun:      s.lastRun(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := s.data(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteDashboard(w, data); err != nil {
		s.logger.WithError(err).Error("Render dashboard")
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListHistory(r.Context(), 0)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHistory(w, events, time.Now()); err != nil {
		s.logger.WithError(err).Error("Render history")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Summary(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Summary(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	var filter store.AccountFilter
	q := r.URL.Query()
	for key, target := range map[string]**bool{"active": &filter.Active, "reciprocates": &filter.Reciprocates} {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": key + " must be a boolean"})
				return
			}
			*target = store.Bool(b)
		}
	}
	accounts, err := s.store.ListAccounts(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	if accounts == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleHistoryJSON(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Report.RecentEvents
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	events, err := s.store.ListHistory(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if events == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycle_running": s.CycleRunning(),
		"last_run":      s.lastRun(),
	})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if s.cycle == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "cycles are not enabled on this server"})
		return
	}
	// the cycle outlives the request
	switch err := s.startCycle(); {
	case errors.Is(err, errCycleRunning):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.WithError(err).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
