// ABOUTME: HTTP daemon that runs summaries in the background and streams their events over SSE.
// ABOUTME: Routes submissions, event streams, snapshots and cancellation through a chi router.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/summarize/events"
	"github.com/2389-research/summarize/history"
	"github.com/2389-research/summarize/summary"
)

// maxSubmitBytes bounds a submission body.
const maxSubmitBytes = 8 << 20

// Defaults fill submission fields the client leaves empty.
type Defaults struct {
	Model           string
	Length          summary.Length
	Language        string
	Streaming       bool
	MaxOutputTokens int
}

// Server is the summarize daemon.
type Server struct {
	token      string
	summarizer *summary.Summarizer
	hub        *events.Hub
	stream     *events.Handler
	store      *history.Store
	defaults   Defaults
	sweepEvery time.Duration
	keepAlive  time.Duration
	router     chi.Router

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
	base   context.Context
	stop   context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithStore records runs in a history store and enables cached results.
func WithStore(store *history.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithDefaults sets the values used when a submission omits them.
func WithDefaults(d Defaults) Option {
	return func(s *Server) {
		s.defaults = d
	}
}

// WithHub replaces the in-memory run hub.
func WithHub(h *events.Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithKeepAlive sets the interval of SSE keep-alive comments.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		s.keepAlive = d
	}
}

// NewServer creates a Server. An empty token disables bearer auth, which
// the config layer only allows on loopback addresses.
func NewServer(token string, sum *summary.Summarizer, opts ...Option) *Server {
	base, stop := context.WithCancel(context.Background())
	s := &Server{
		token:      token,
		summarizer: sum,
		hub:        events.NewHub(),
		defaults:   Defaults{Model: summary.AutoModel, Length: summary.LengthMedium, Streaming: true},
		sweepEvery: time.Minute,
		keepAlive:  15 * time.Second,
		active:     make(map[string]context.CancelFunc),
		base:       base,
		stop:       stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stream = events.NewHandler(s.hub, s.keepAlive)
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the server's run hub.
func (s *Server) Hub() *events.Hub {
	return s.hub
}

// Recover marks runs left "running" by a previous process as cancelled.
func (s *Server) Recover(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	n, err := s.store.MarkInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("mark interrupted runs: %w", err)
	}
	if n > 0 {
		log.Printf("component=daemon action=recover interrupted=%d", n)
	}
	return nil
}

// ListenAndServe serves on addr until ctx is cancelled, then cancels
// in-flight runs and shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Event streams stay open for the life of a run.
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	go s.sweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("component=daemon action=listen addr=%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Shutdown cancels every in-flight run and waits for them to record their
// final state.
func (s *Server) Shutdown() {
	s.stop()
	s.wg.Wait()
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.hub.Sweep(now); n > 0 {
				log.Printf("component=daemon action=sweep removed=%d", n)
			}
		}
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(bearerAuth(s.token))
		r.Get("/summarize", s.handleList)
		r.Post("/summarize", s.handleSubmit)
		r.Route("/summarize/{id}", func(r chi.Router) {
			r.Use(requireRunID)
			r.Get("/", s.handleSnapshot)
			r.Delete("/", s.handleCancel)
			r.Get("/events", s.handleEvents)
			r.Post("/seen", s.handleSeen)
		})
	})
	return r
}

// requireRunID answers 404 for ids that are not ULIDs before any lookup.
func requireRunID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validRunID(chi.URLParam(r, "id")) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.stream.Serve(w, r, chi.URLParam(r, "id"))
}

func (s *Server) register(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[id] = cancel
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

func (s *Server) cancel(id string) bool {
	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
