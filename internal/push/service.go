package push

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"pipeline-hub/internal/circuitbreaker"
	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/common/validation"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/storage"
)

// DeliveryResult is the settled outcome of one subscription attempt.
type DeliveryResult struct {
	SubscriptionID string `json:"subscriptionId"`
	Endpoint       string `json:"endpoint"`
	Success        bool   `json:"success"`
	Pruned         bool   `json:"pruned,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SubscribeRequest is the browser PushSubscription JSON.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,push_endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

// Service fans payloads out to every subscription of a user.
type Service struct {
	store     storage.PushSubscriptionStore
	transport Transport
	publicKey string
	now       func() time.Time
	logger    logging.Logger
}

// NewService creates a push service. publicKey is the VAPID application
// server key handed to browsers.
func NewService(store storage.PushSubscriptionStore, transport Transport, publicKey string) *Service {
	return &Service{
		store:     store,
		transport: transport,
		publicKey: publicKey,
		now:       time.Now,
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "push"}),
	}
}

// PublicKey returns the VAPID public key, empty when push is not configured.
func (s *Service) PublicKey() string {
	return s.publicKey
}

// BreakerStats reports the per-host breakers of the transport, or nil when
// the transport has none.
func (s *Service) BreakerStats() []circuitbreaker.Stats {
	if bt, ok := s.transport.(interface{ Stats() []circuitbreaker.Stats }); ok {
		return bt.Stats()
	}
	return nil
}

// Subscribe stores the subscription for userID, refreshing the keys when
// the endpoint is already registered.
func (s *Service) Subscribe(ctx context.Context, userID string, req *SubscribeRequest) (*models.PushSubscription, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	sub := &models.PushSubscription{
		UserID:    userID,
		Endpoint:  strings.TrimSpace(req.Endpoint),
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.UpsertPushSubscription(ctx, sub); err != nil {
		return nil, errors.InternalError("failed to save push subscription", err)
	}
	return sub, nil
}

// Unsubscribe removes the user's subscription for endpoint. Removing an
// unknown endpoint is not an error.
func (s *Service) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.ValidationError("endpoint is required")
	}
	if err := s.store.DeletePushSubscriptionByEndpoint(ctx, userID, endpoint); err != nil {
		return errors.InternalError("failed to delete push subscription", err)
	}
	return nil
}

// SendToUser delivers payload to every subscription of userID and waits for
// all attempts to settle. One failed delivery never cancels the others.
// Subscriptions the push service reports as gone are deleted.
//
// An error is returned only when the subscriptions cannot be loaded or the
// payload cannot be encoded.
func (s *Service) SendToUser(ctx context.Context, userID string, payload any) ([]DeliveryResult, error) {
	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	subs, err := s.store.ListPushSubscriptions(ctx, userID)
	if err != nil {
		return nil, errors.InternalError("failed to load push subscriptions", err)
	}

	results := make([]DeliveryResult, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *models.PushSubscription) {
			defer wg.Done()
			results[i] = s.deliver(ctx, sub, body)
		}(i, sub)
	}
	wg.Wait()

	s.logSettled(userID, results)
	return results, nil
}

func (s *Service) deliver(ctx context.Context, sub *models.PushSubscription, body []byte) DeliveryResult {
	result := DeliveryResult{SubscriptionID: sub.ID, Endpoint: sub.Endpoint}

	err := s.transport.Send(ctx, sub, body)
	switch {
	case err == nil:
		result.Success = true
		if err := s.store.TouchPushSubscription(ctx, sub.ID, s.now().UTC()); err != nil {
			s.logger.Warn("Failed to update subscription last use",
				logging.Field{Key: "subscription_id", Value: sub.ID}, logging.Err(err))
		}
	case stderrors.Is(err, ErrSubscriptionGone):
		result.Error = err.Error()
		if err := s.store.DeletePushSubscription(ctx, sub.ID); err != nil {
			s.logger.Error("Failed to prune gone subscription", err,
				logging.Field{Key: "subscription_id", Value: sub.ID})
		} else {
			result.Pruned = true
		}
	default:
		result.Error = err.Error()
	}
	return result
}

func (s *Service) logSettled(userID string, results []DeliveryResult) {
	var delivered, pruned, failed int
	for _, r := range results {
		switch {
		case r.Success:
			delivered++
		case r.Pruned:
			pruned++
		default:
			failed++
		}
	}
	s.logger.Info("Push fan-out settled",
		logging.Field{Key: "user_id", Value: userID},
		logging.Field{Key: "subscriptions", Value: len(results)},
		logging.Field{Key: "delivered", Value: delivered},
		logging.Field{Key: "pruned", Value: pruned},
		logging.Field{Key: "failed", Value: failed},
	)
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.InternalError("failed to encode push payload", err)
	}
	return body, nil
}
