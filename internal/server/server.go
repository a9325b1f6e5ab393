package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harvestlink/advisor/internal/api"
	"github.com/harvestlink/advisor/internal/config"
	"github.com/harvestlink/advisor/internal/logging"
)

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
}

// New creates a new Server serving the given predictor. hist may be nil
// when the prediction log is disabled.
func New(cfg config.Config, predictor api.Predictor, hist api.History) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	s.setupRoutes(predictor, hist)
	s.handler = s.wrap(s.router)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(predictor api.Predictor, hist api.History) {
	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	api.NewHandler(predictor, hist, s.cfg.Version).RegisterRoutes(apiRouter)

	// Prometheus exposition
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
}

// wrap applies the outer middleware. CORS sits outside routing so
// preflight requests never reach the method matchers.
func (s *Server) wrap(h http.Handler) http.Handler {
	if limit := s.cfg.Server.RateLimitPerMinute; limit > 0 {
		h = httprate.Limit(limit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}),
		)(h)
	}

	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 {
		return h
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", api.FarmerHeader, api.RequestIDHeader},
		ExposedHeaders: []string{api.RequestIDHeader},
		MaxAge:         300,
	})(h)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	logging.Info().Str("addr", s.cfg.Addr()).Msg("Server listening")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":false,"error":"` + message + `"}` + "\n"))
}
