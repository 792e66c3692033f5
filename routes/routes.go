package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-chat-gateway/app"
	"github.com/upb/llm-chat-gateway/handlers"
	"github.com/upb/llm-chat-gateway/internal/observability"
	"github.com/upb/llm-chat-gateway/middleware"
	"github.com/upb/llm-chat-gateway/utils"
	"go.uber.org/zap"
)

// requestTimeout bounds every route except chat turns, which may stream for
// as long as the provider keeps producing.
const requestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.Logger, deps.ReadinessChecks()...)
	chat := handlers.NewChatHandler(deps.Chat, deps.Credentials, deps.Logger)
	creds := handlers.NewCredentialHandler(deps.Credentials, deps.Registry, deps.Vault, deps.Chat, deps.Logger)
	provs := handlers.NewProviderHandler(deps.Registry, deps.Metrics, deps.Logger)

	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Post("/turns", chat.HandleTurn)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))

			r.Get("/providers", provs.HandleListProviders)
			r.Get("/metrics/usage", provs.HandleUsage)

			r.Route("/credentials", func(r chi.Router) {
				r.Get("/", creds.HandleList)
				r.Post("/", creds.HandleCreate)
				r.Get("/{id}", creds.HandleGet)
				r.Put("/{id}", creds.HandleUpdate)
				r.Delete("/{id}", creds.HandleDelete)
				r.Get("/{id}/models", chat.HandleListModels)
				r.Get("/{id}/model", chat.HandleChooseModel)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// requestLogger logs one line per request, tagged with the request ID.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	log := observability.NewContextLogger(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info(r.Context(), "http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
