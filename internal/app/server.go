package app

import (
	"context"

	"github.com/gorilla/mux"

	"pipeline-hub/internal/handlers"
	"pipeline-hub/internal/server"
)

// Router builds the HTTP handler for every route.
func (app *App) Router() *mux.Router {
	h := handlers.New(app.Storage, app.Auth, app.Pipelines, app.Webhooks, app.Dispatcher, app.Push)

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Auth.RequireAuth, app.initializeRateLimiter(), app.clientKey())
	return router
}

// RunServer creates the HTTP server for the configured port.
func (app *App) RunServer() *server.Server {
	return server.New(app.Router(), app.Config.Port)
}

// Shutdown stops schedules and waits for in-flight webhook deliveries
// until ctx expires.
func (app *App) Shutdown(ctx context.Context) error {
	app.Scheduler.Stop()

	done := make(chan struct{})
	go func() {
		app.Dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.Logger.Info("Pending deliveries drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
