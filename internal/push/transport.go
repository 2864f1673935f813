// Package push delivers notification payloads to the browser push
// subscriptions of a user and prunes subscriptions the push service has
// permanently rejected.
package push

import (
	"context"
	stderrors "errors"
	"net/url"

	"pipeline-hub/internal/circuitbreaker"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/models"
)

// ErrSubscriptionGone is returned by a Transport when the push service
// reports that the subscription no longer exists.
var ErrSubscriptionGone = stderrors.New("push subscription is gone")

// Transport encrypts and delivers one payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error
}

// BreakerTransport stops sending to a push service host after repeated
// failures, so an outage of one provider fails fast.
type BreakerTransport struct {
	next     Transport
	breakers *circuitbreaker.Manager
}

// NewBreakerTransport wraps next with one circuit breaker per endpoint host.
func NewBreakerTransport(next Transport, config circuitbreaker.Config, logger logging.Logger) *BreakerTransport {
	config.Ignore = func(err error) bool {
		return stderrors.Is(err, ErrSubscriptionGone)
	}
	return &BreakerTransport{
		next:     next,
		breakers: circuitbreaker.NewManager(config, logger),
	}
}

func (t *BreakerTransport) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	return t.breakers.Execute(ctx, endpointHost(sub.Endpoint), func() error {
		return t.next.Send(ctx, sub, payload)
	})
}

// Stats reports the state of every push service breaker.
func (t *BreakerTransport) Stats() []circuitbreaker.Stats {
	return t.breakers.AllStats()
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
