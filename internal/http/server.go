package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expenses/internal/graph"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
)

const (
	GraphQLPath = "/graphql/expenses"

	maxBodyBytes = 1 << 20
	readyTimeout = 2 * time.Second
)

// Pinger reports whether the store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	Addr    string
	Logger  *log.Logger
	Service graph.ExpenseService
	Store   Pinger

	GraphiQL bool
	// RateLimitPerMinute caps GraphQL requests per client; zero disables limiting.
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	schema, err := graph.NewSchema(&graph.Resolver{Service: opts.Service})
	if err != nil {
		return nil, err
	}

	s := &Server{}

	var gql http.Handler = limitBody(graph.NewHandler(schema, opts.GraphiQL))
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		gql = s.limiter.Middleware(security.ExtractClientIP)(gql)
	}

	mux := http.NewServeMux()
	mux.Handle(GraphQLPath, gql)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady(opts.Store))
	mux.Handle("/metrics", metrics.Handler())

	headers := security.DefaultHeadersConfig()
	if opts.GraphiQL {
		headers = security.GraphiQLHeadersConfig()
	}

	tracer := trace.NewMiddleware(logger, security.ExtractClientIP, GraphQLPath, "/healthz", "/readyz", "/metrics")

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = log.Middleware(logger, trace.RequestIDFromRequest)(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:           opts.Addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
