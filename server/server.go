// Package server exposes the filtered post stream and ingestion diagnostics
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/oliverames/ames-consulting/config"
	"github.com/oliverames/ames-consulting/filter"
	"github.com/oliverames/ames-consulting/journal"
	"github.com/oliverames/ames-consulting/post"
	"github.com/oliverames/ames-consulting/source"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
	failureWindow     = 24 * time.Hour
	shutdownTimeout   = 5 * time.Second
)

// Lister runs the ingestion pipeline once.
type Lister interface {
	List(ctx context.Context) (source.Listing, error)
}

// ListerFunc builds the pipeline for a configuration.
type ListerFunc func(cfg config.Config) Lister

// EventLog is the read side of the ingestion journal.
type EventLog interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	FailureCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

type snapshot struct {
	cfg    config.Config
	lister Lister
}

// Server serves the post API. Every request runs the pipeline fresh against
// the current configuration snapshot.
type Server struct {
	state     atomic.Pointer[snapshot]
	newLister ListerFunc
	events    EventLog
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

// New creates a Server. events and logger may be nil.
func New(cfg config.Config, newLister ListerFunc, events EventLog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		newLister: newLister,
		events:    events,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger,
	}
	s.Update(cfg)
	return s
}

// Update swaps in a new configuration. Requests already running keep the
// snapshot they started with.
func (s *Server) Update(cfg config.Config) {
	s.state.Store(&snapshot{cfg: cfg, lister: s.newLister(cfg)})
}

// Config returns the configuration currently served.
func (s *Server) Config() config.Config {
	return s.state.Load().cfg
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts", withJSON(s.handlePosts))
	mux.HandleFunc("GET /api/posts/{id}", withJSON(s.handlePost))
	mux.HandleFunc("GET /api/diagnostics", withJSON(s.handleDiagnostics))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	return s.logRequest(mux)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// PostsResponse is the body of GET /api/posts.
type PostsResponse struct {
	SiteTitle  string        `json:"siteTitle"`
	View       filter.View   `json:"view"`
	Filter     filter.State  `json:"filter"`
	Status     filter.Status `json:"status"`
	StatusText string        `json:"statusText"`
	Query      string        `json:"query"`
	Posts      []post.Post   `json:"posts"`
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) (any, int, error) {
	snap := s.state.Load()
	params := r.URL.Query()
	view := filter.ParseView(params.Get("view"))
	codec := filter.Codec{View: view, DefaultTag: snap.cfg.PortfolioTag}
	state := codec.Decode(params)

	listing, err := snap.lister.List(r.Context())
	if err != nil && !errors.Is(err, source.ErrSourcesExhausted) {
		return nil, http.StatusInternalServerError, err
	}

	posts := filter.Apply(listing.Posts, state, view, snap.cfg.HomePreviewLimit)
	status := filter.NewStatus(len(posts), state, listing.Provider, listing.Degraded)
	return PostsResponse{
		SiteTitle:  snap.cfg.SiteTitle,
		View:       view,
		Filter:     state,
		Status:     status,
		StatusText: status.String(),
		Query:      codec.Encode(params, state).Encode(),
		Posts:      posts,
	}, http.StatusOK, nil
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) (any, int, error) {
	id := r.PathValue("id")
	listing, err := s.state.Load().lister.List(r.Context())
	if err != nil && !errors.Is(err, source.ErrSourcesExhausted) {
		return nil, http.StatusInternalServerError, err
	}

	for _, p := range listing.Posts {
		if p.ID == id {
			p.ContentHTML = s.sanitizer.Sanitize(p.ContentHTML)
			return p, http.StatusOK, nil
		}
	}
	return nil, http.StatusNotFound, fmt.Errorf("post %q not found", id)
}

// DiagnosticsResponse is the body of GET /api/diagnostics.
type DiagnosticsResponse struct {
	Events   []journal.Entry `json:"events"`
	Failures map[string]int  `json:"failures24h"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) (any, int, error) {
	if s.events == nil {
		return nil, http.StatusServiceUnavailable, errors.New("journal disabled")
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw)
		}
		limit = min(n, maxEventLimit)
	}

	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	failures, err := s.events.FailureCounts(r.Context(), time.Now().Add(-failureWindow))
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return DiagnosticsResponse{Events: events, Failures: failures}, http.StatusOK, nil
}

func withJSON(handler func(http.ResponseWriter, *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, status, err := handler(w, r)
		if err != nil {
			writeJSON(w, status, map[string]any{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, status, payload)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
