package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"pipeline-hub/internal/common/ratelimit"
	"pipeline-hub/internal/handlers"
	"pipeline-hub/internal/middleware"
)

// SetupRoutes configures all HTTP routes for the application.
// clientKey identifies the caller for the webhook rate limit.
func SetupRoutes(
	router *mux.Router,
	h *handlers.Handlers,
	authMiddleware func(http.Handler) http.Handler,
	rateLimiter ratelimit.Limiter,
	clientKey func(*http.Request) string,
) {
	router.Use(middleware.RequestID, middleware.Logging)

	router.HandleFunc("/health", h.Health).Methods("GET")

	// Public API routes
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/shared/{token}", h.GetSharedPipeline).Methods("GET")
	api.HandleFunc("/nodes/types", h.ListNodeTypes).Methods("GET")
	api.HandleFunc("/nodes/types/{type}", h.GetNodeType).Methods("GET")
	api.HandleFunc("/nodes/validate", h.ValidateNode).Methods("POST")
	api.HandleFunc("/push/public-key", h.GetPublicKey).Methods("GET")

	// Protected API routes
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/auth/me", h.Me).Methods("GET")

	protected.HandleFunc("/pipelines", h.ListPipelines).Methods("GET")
	protected.HandleFunc("/pipelines", h.CreatePipeline).Methods("POST")
	protected.HandleFunc("/pipelines/{id}", h.GetPipeline).Methods("GET")
	protected.HandleFunc("/pipelines/{id}", h.UpdatePipeline).Methods("PATCH", "PUT")
	protected.HandleFunc("/pipelines/{id}", h.DeletePipeline).Methods("DELETE")
	protected.HandleFunc("/pipelines/{id}/validate", h.ValidatePipeline).Methods("POST")
	protected.HandleFunc("/pipelines/{id}/run", h.RunPipeline).Methods("POST")
	protected.HandleFunc("/pipelines/{id}/webhooks", h.ListWebhooks).Methods("GET")
	protected.HandleFunc("/pipelines/{id}/webhooks", h.CreateWebhook).Methods("POST")

	protected.HandleFunc("/webhooks/{id}", h.UpdateWebhook).Methods("PATCH")
	protected.HandleFunc("/webhooks/{id}", h.DeleteWebhook).Methods("DELETE")
	protected.HandleFunc("/webhooks/{id}/last-request", h.GetLastRequest).Methods("GET")

	protected.HandleFunc("/shared/{token}/clone", h.ClonePipeline).Methods("POST")

	protected.HandleFunc("/push/subscribe", h.Subscribe).Methods("POST")
	protected.HandleFunc("/push/unsubscribe", h.Unsubscribe).Methods("POST")
	protected.HandleFunc("/push/test", h.TestPush).Methods("POST")

	// Webhook trigger endpoint (no auth, rate limited per client IP)
	var trigger http.Handler = http.HandlerFunc(h.TriggerWebhook)
	if rateLimiter != nil {
		trigger = ratelimit.HTTPMiddleware(rateLimiter, clientKey)(trigger)
	}
	router.Handle("/webhook/{token}", trigger).Methods("GET", "POST", "PUT", "PATCH", "DELETE")
}
