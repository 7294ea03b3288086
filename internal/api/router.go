package api

import (
	"net/http"
	"time"

	// This blank import is required by swaggo to find the API definitions.
	_ "flow-stream/backend/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	ChatRateLimit float64
	ChatRateBurst int
}

// NewRouter creates and configures a new chi router with all the application's routes.
func NewRouter(chatHandler *ChatHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// --- Global Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- Public Routes ---
	r.Get("/api/swagger/*", httpSwagger.WrapHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Liveness probe.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// --- API Version 1 Routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Standard JSON routes get a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// --- Threads ---
			r.Get("/threads", chatHandler.GetThreads)
			r.Get("/threads/{threadID}", chatHandler.GetThread)
			r.Get("/threads/{threadID}/messages", chatHandler.GetThreadMessages)
			r.Put("/threads/{threadID}/title", chatHandler.UpdateThreadTitle)
			r.Delete("/threads/{threadID}", chatHandler.DeleteThread)
			r.Post("/threads/{threadID}/truncate", chatHandler.TruncateThread)
			r.Post("/threads/{threadID}/branch", chatHandler.BranchThread)

			// --- Generation control ---
			r.Post("/chat/stop", chatHandler.HandleStop)
		})

		// Streaming routes must NOT have a timeout; a generation may outlive
		// any sensible request deadline.
		r.Group(func(r chi.Router) {
			r.With(RateLimit(opts.ChatRateLimit, opts.ChatRateBurst)).Post("/chat", chatHandler.HandleChat)
			r.Get("/chat", chatHandler.HandleResume)
		})
	})

	return r
}
