package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"stocksync/internal/config"
	custommiddleware "stocksync/internal/middleware"
)

// Runner starts a sync run in the background. It reports false when a run
// is already in flight and the trigger was dropped.
type Runner interface {
	StartRun(reason string) bool
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
}

// NewServer builds the serve-mode HTTP surface: a health endpoint and the
// storage provider's webhook. The webhook GET is the provider's endpoint
// verification (challenge echo); the POST is a signed change notification
// that triggers a run.
func NewServer(cfg *config.Config, runner Runner, logger *zap.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/webhook/source", func(r chi.Router) {
		r.Get("/", handleChallenge)
		r.With(custommiddleware.SignatureMiddleware(cfg.Source.AppSecret, logger)).
			Post("/", handleNotification(runner, logger))
	})

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}

	return server
}

// handleChallenge echoes the verification challenge back as plain text,
// which is how the provider confirms webhook ownership.
func handleChallenge(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// handleNotification acknowledges the signed change notification and kicks
// off a run in the background. The provider retries on non-2xx, so the
// response never waits for the run itself.
func handleNotification(runner Runner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner.StartRun("webhook") {
			logger.Info("Webhook notification accepted, run started")
		} else {
			logger.Info("Webhook notification received while a run is in flight, dropped")
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")
	s.logger.Sync()
	return nil
}
