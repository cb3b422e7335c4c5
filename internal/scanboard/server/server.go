// Package server runs the scanboard HTTP server: scan triggering, rating
// API, health endpoints and the dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/build-flow-labs/scanboard/internal/scanboard/dashboard"
	"github.com/build-flow-labs/scanboard/internal/scanboard/scanner"
	"github.com/build-flow-labs/scanboard/internal/scanboard/store"
	"github.com/build-flow-labs/scanboard/rating"
)

const maxBodyBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	Addr      string
	ScanDelay time.Duration
	Policy    rating.Policy
}

// Server is the scanboard HTTP server.
type Server struct {
	cfg       Config
	store     *store.Store
	scanner   *scanner.Scanner
	dashboard *dashboard.Dashboard
	logger    *slog.Logger
	mux       *http.ServeMux

	scansProcessed atomic.Int64
	scansFailed    atomic.Int64
	lastScanAt     atomic.Value // time.Time
}

// New creates a configured server over a loaded store.
func New(cfg Config, st *store.Store, logger *slog.Logger) *Server {
	if cfg.Policy == "" {
		cfg.Policy = rating.PolicySeverityGated
	}

	s := &Server{
		cfg:     cfg,
		store:   st,
		scanner: scanner.New(cfg.ScanDelay, logger),
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /api/scans", s.handleCreateScan)
	s.mux.HandleFunc("POST /api/assess", s.handleAssess)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)

	dash, err := dashboard.New(st, logger)
	if err != nil {
		logger.Warn("dashboard init failed, UI will be unavailable", "error", err)
	} else {
		s.dashboard = dash
		dash.RegisterRoutes(s.mux)
		logger.Info("dashboard enabled", "url", fmt.Sprintf("http://localhost%s/ui", cfg.Addr))
	}

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.ScanDelay + 30*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			"addr", s.cfg.Addr,
			"storage_dir", s.store.Dir(),
			"policy", s.cfg.Policy,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"scans_processed": s.scansProcessed.Load(),
		"scans_failed":    s.scansFailed.Load(),
		"scans_stored":    s.store.Count(),
		"policy":          s.cfg.Policy,
		"dashboard":       s.dashboard != nil,
	}
	if t, ok := s.lastScanAt.Load().(time.Time); ok {
		status["last_scan_at"] = t.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.dashboard == nil {
		writeError(w, http.StatusServiceUnavailable, "dashboard unavailable")
		return
	}
	if err := s.dashboard.Refresh(); err != nil {
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"scans_stored": s.store.Count()})
}

type createScanRequest struct {
	Project string `json:"project"`
	URL     string `json:"url"`
}

type createScanResponse struct {
	ScanID     string            `json:"scan_id"`
	Project    string            `json:"project"`
	TargetURL  string            `json:"target_url"`
	Assessment rating.Assessment `json:"assessment"`
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !store.ValidProject(req.Project) {
		writeError(w, http.StatusBadRequest, "project must be 1-64 letters, digits, '.', '_' or '-'")
		return
	}
	if _, err := scanner.ValidateTarget(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	started := time.Now().UTC()
	scan, err := s.scanner.Scan(r.Context(), req.Project, req.URL)
	if err != nil {
		s.scansFailed.Add(1)
		s.recordFailure(req.Project, req.URL, started, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("scan aborted", "project", req.Project, "error", err)
			writeError(w, http.StatusServiceUnavailable, "scan aborted")
			return
		}
		s.logger.Error("scan failed", "project", req.Project, "error", err)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	if err := s.store.Put(scan); err != nil {
		s.scansFailed.Add(1)
		s.logger.Error("storing scan", "scan_id", scan.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "storing scan failed")
		return
	}

	s.scansProcessed.Add(1)
	s.lastScanAt.Store(time.Now().UTC())

	assessment, err := s.assess(scan.Findings, s.cfg.Policy, "scan_id", scan.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, createScanResponse{
		ScanID:     scan.ID,
		Project:    scan.Project,
		TargetURL:  scan.TargetURL,
		Assessment: assessment,
	})
}

// recordFailure stores a failed scan so it shows up in scan listings.
func (s *Server) recordFailure(project, target string, started time.Time, scanErr error) {
	ended := time.Now().UTC()
	failed := &store.Scan{
		Project:     project,
		TargetURL:   target,
		Status:      store.StatusFailed,
		Error:       scanErr.Error(),
		StartedAt:   started,
		CompletedAt: &ended,
	}
	if err := s.store.Put(failed); err != nil {
		s.logger.Error("storing failed scan", "project", project, "error", err)
		return
	}
	s.logger.Debug("failed scan recorded", "scan_id", failed.ID, "project", project)
}

type assessRequest struct {
	Findings []rating.Finding       `json:"findings,omitempty"`
	Counts   *rating.SeverityCounts `json:"counts,omitempty"`
	Policy   string                 `json:"policy,omitempty"`
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	policy := s.cfg.Policy
	if req.Policy != "" {
		p, err := rating.ParsePolicy(req.Policy)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}

	var (
		assessment rating.Assessment
		err        error
	)
	switch {
	case req.Counts != nil && req.Findings != nil:
		writeError(w, http.StatusBadRequest, "send either findings or counts, not both")
		return
	case req.Counts != nil:
		assessment, err = rating.AssessCounts(*req.Counts, policy)
	default:
		assessment, err = s.assess(req.Findings, policy)
	}
	if err != nil {
		if errors.Is(err, rating.ErrInvalidCounts) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// assess rates findings and logs any that could not be classified.
func (s *Server) assess(findings []rating.Finding, policy rating.Policy, logAttrs ...any) (rating.Assessment, error) {
	agg := rating.Aggregate(findings)
	if agg.Unclassified > 0 {
		s.logger.Warn("unclassified findings",
			append(logAttrs, "count", agg.Unclassified, "values", agg.Unrecognized)...)
	}
	a, err := rating.AssessCounts(agg.Counts, policy)
	if err != nil {
		s.logger.Error("assessing findings", append(logAttrs, "error", err)...)
		return rating.Assessment{}, err
	}
	a.Unclassified = agg.Unclassified
	return a, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
