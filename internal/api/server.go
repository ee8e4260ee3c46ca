package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/rootline/rootline/pkg/refs"
	"github.com/rootline/rootline/pkg/review"
	"github.com/rootline/rootline/pkg/session"
	"github.com/rootline/rootline/pkg/suggest"
	"github.com/rootline/rootline/pkg/tree"
)

// Backend is everything the server needs from the genealogy backend.
type Backend interface {
	tree.Fetcher
	tree.PictureUploader
	refs.Lookup
	suggest.Backend
	review.Backend
	Suggestions(ctx context.Context, status suggest.Status) ([]suggest.Suggestion, error)
	Authenticate(ctx context.Context, token string) (session.Viewer, error)
}

// Options configures a [Server].
type Options struct {
	Backend  Backend
	Sessions session.Store
	Ledger   review.Store

	// ViewTTL is how long an unused tree view is kept. Defaults to 30 minutes.
	ViewTTL time.Duration

	// Concurrency bounds reference lookups per preview.
	Concurrency int

	// AllowedOrigins enables CORS for browser clients.
	AllowedOrigins []string

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	Logger *log.Logger
}

// Server is the rootline HTTP API.
type Server struct {
	backend   Backend
	sessions  session.Store
	ledger    review.Store
	previewer *suggest.Previewer
	review    *review.Service
	views     *viewStore
	validate  *validator.Validate
	logger    *log.Logger
	router    chi.Router
}

// New builds a server. Call [Server.Start] to begin sweeping idle views and
// [Server.Close] when done.
func New(opts Options) (*Server, error) {
	if opts.Backend == nil || opts.Sessions == nil || opts.Ledger == nil {
		return nil, errors.New("api: backend, sessions and ledger are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ttl := opts.ViewTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = refs.DefaultConcurrency
	}

	s := &Server{
		backend:  opts.Backend,
		sessions: opts.Sessions,
		ledger:   opts.Ledger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	resolver := refs.NewResolver(opts.Backend, refs.WithConcurrency(concurrency), refs.WithLogger(logger))
	s.previewer = suggest.NewPreviewer(opts.Backend, resolver, suggest.WithLogger(logger))
	s.review = &review.Service{Backend: opts.Backend, Store: opts.Ledger, Logger: logger}
	s.views = newViewStore(func() *tree.View {
		return tree.NewView(opts.Backend, tree.WithUploader(opts.Backend), tree.WithLogger(logger))
	}, ttl, logger)

	s.router = s.routes(opts)
	return s, nil
}

func (s *Server) routes(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderRequestID, HeaderViewID},
			ExposedHeaders: []string{HeaderRequestID, HeaderViewID},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/sessions", s.createSession)
		r.Delete("/sessions/current", s.deleteSession)

		r.Get("/tree/{ref}", s.getTree)
		r.Post("/tree/{ref}/hop", s.hop)
		r.Delete("/views/{id}", s.closeView)
		r.Post("/people/{ref}/picture", s.uploadPicture)

		r.Get("/suggestions", s.listSuggestions)
		r.Get("/suggestions/{id}/preview", s.previewSuggestion)
		r.Post("/suggestions/{id}/decision", s.decide)
		r.Get("/decisions", s.listDecisions)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins sweeping idle views every interval.
func (s *Server) Start(interval time.Duration) error {
	return s.views.start(interval)
}

// Close stops the sweeper and closes all views.
func (s *Server) Close() {
	s.views.close()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	s.logger.Info("server stopped")
	return err
}

// breakerReporter is implemented by backends behind a circuit breaker.
type breakerReporter interface {
	BreakerState() string
}

// health always answers 200. Status is "degraded" while the backend
// breaker is open.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "views": s.views.len()}
	if b, ok := s.backend.(breakerReporter); ok {
		state := b.BreakerState()
		body["backend"] = state
		if state == "open" {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}
