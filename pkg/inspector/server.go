package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rerrors "github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/timeline"
)

// DefaultShutdownTimeout bounds graceful shutdown in Run.
const DefaultShutdownTimeout = 5 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer sets the source of /metrics. Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithCheckOrigin sets the websocket origin check. Default: same origin.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.checkOrigin = fn
	}
}

// Server exposes a Recorder and a Store over HTTP.
type Server struct {
	recorder    *timeline.Recorder
	store       timeline.Store
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	checkOrigin func(r *http.Request) bool

	router chi.Router
	stream *stream
}

// New creates a Server. A nil store gets a MemoryStore.
func New(rec *timeline.Recorder, store timeline.Store, opts ...Option) *Server {
	s := &Server{
		recorder: rec,
		store:    store,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = timeline.NewMemoryStore()
	}

	s.stream = newStream(rec, s.logger, s.checkOrigin)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/timeline", s.handleLive)
		r.Post("/timeline", s.handleSnapshot)
		r.Get("/timeline/{id}", s.handleLoad)
		r.Get("/timelines", s.handleList)
	})
	r.Get("/ws", s.stream.ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is done, then shuts down gracefully and
// closes every stream connection.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspector listening", "address", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	s.stream.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("inspector shutdown error", "error", err)
		return err
	}
	s.logger.Info("inspector shutdown complete")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("inspector request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type healthResponse struct {
	Status      string `json:"status"`
	Session     string `json:"session"`
	Events      int    `json:"events"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Session:     s.recorder.Session(),
		Events:      s.recorder.Len(),
		Subscribers: s.recorder.Subscribers(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.recorder.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	t := s.recorder.Snapshot()
	if err := s.store.Save(r.Context(), t); err != nil {
		s.writeError(w, err)
		return
	}
	if r.URL.Query().Get("reset") == "true" {
		s.recorder.Reset()
	}

	sum := timeline.Summary{
		ID:      t.ID,
		Session: t.Session,
		Created: t.Created,
		Events:  len(t.Events),
	}
	w.Header().Set("Location", "/api/timeline/"+t.ID)
	writeJSON(w, http.StatusCreated, sum)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []timeline.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	switch {
	case errors.Is(err, timeline.ErrNotFound):
		status = http.StatusNotFound
		resp.Code = rerrors.CodeTimelineNotFound
	case errors.Is(err, timeline.ErrStoreClosed):
		status = http.StatusServiceUnavailable
	default:
		var d *rerrors.Diagnostic
		if errors.As(err, &d) {
			resp.Code = d.Code
			if d.Code == rerrors.CodeStoreUnavailable {
				status = http.StatusBadGateway
			}
		}
		s.logger.Error("inspector request failed", "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StreamClients returns the number of connected websocket clients.
func (s *Server) StreamClients() int {
	return s.stream.ClientCount()
}
