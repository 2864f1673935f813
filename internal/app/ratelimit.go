package app

import (
	"net/http"

	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/common/ratelimit"
)

// initializeRateLimiter builds the limiter guarding the public webhook
// endpoint. It returns nil when rate limiting is disabled.
func (app *App) initializeRateLimiter() ratelimit.Limiter {
	if !app.Config.RateLimitEnabled {
		app.Logger.Info("Rate Limiting: Disabled")
		return nil
	}

	cfg := ratelimit.DefaultConfig()
	cfg.Requests = app.Config.RateLimitRequests
	cfg.Window = app.Config.RateLimitWindow
	cfg.KeyPrefix = "webhook:"

	var redisClient ratelimit.RedisInterface
	if app.RedisClient != nil {
		cfg.Type = ratelimit.BackendDistributed
		redisClient = app.RedisClient
	}

	limiter, err := ratelimit.New(cfg, redisClient)
	if err != nil {
		app.Logger.Warn("Falling back to local rate limiter", logging.Field{Key: "error", Value: err.Error()})
		cfg.Type = ratelimit.BackendLocal
		if limiter, err = ratelimit.New(cfg, nil); err != nil {
			app.Logger.Error("Rate limiter unavailable", err)
			return nil
		}
	}

	app.Logger.Info("Rate Limiting: Enabled",
		logging.Field{Key: "backend", Value: string(cfg.Type)},
		logging.Field{Key: "limit", Value: cfg.Requests},
		logging.Field{Key: "window", Value: cfg.Window.String()},
	)
	return limiter
}

// clientKey keys the webhook rate limit by client address, believing
// forwarding headers only from the configured proxies.
func (app *App) clientKey() func(*http.Request) string {
	key, err := ratelimit.ClientIPKey(app.Config.TrustedProxies)
	if err != nil {
		app.Logger.Warn("Ignoring trusted proxies", logging.Field{Key: "error", Value: err.Error()})
		return ratelimit.IPKey
	}
	return key
}
