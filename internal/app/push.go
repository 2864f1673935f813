package app

import (
	"fmt"

	"pipeline-hub/internal/circuitbreaker"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/push"
)

// initializePush builds the push service. Without configured VAPID keys a
// throwaway pair is generated, so existing browser subscriptions stop
// working after a restart.
func (app *App) initializePush() error {
	cfg := app.Config
	if !cfg.HasVAPIDKeys() {
		publicKey, privateKey, err := push.GenerateVAPIDKeys()
		if err != nil {
			return fmt.Errorf("failed to generate VAPID keys: %w", err)
		}
		cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey = publicKey, privateKey
		app.Logger.Warn("VAPID keys not configured, generated an ephemeral pair; run vapidgen and set VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY")
	}

	webPush := push.NewWebPushTransport(push.WebPushConfig{
		Subject:    cfg.VAPIDSubject,
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		TTL:        cfg.PushTTL,
		Timeout:    cfg.PushTimeout,
	})

	logger := logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "push"})
	app.Transport = push.NewBreakerTransport(webPush, circuitbreaker.DefaultConfig(), logger)
	app.Push = push.NewService(app.Storage, app.Transport, cfg.VAPIDPublicKey)
	return nil
}
