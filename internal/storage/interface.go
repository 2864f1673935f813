// Package storage defines the persistence contract of pipeline-hub.
//
// Lookups that find nothing return (nil, nil); callers decide whether a
// missing row is an error. Writes that break a uniqueness constraint return
// an error wrapping ErrDuplicate.
package storage

import (
	"context"
	stderrors "errors"
	"time"

	"pipeline-hub/internal/models"
)

// ErrDuplicate is wrapped by errors caused by a unique constraint.
var ErrDuplicate = stderrors.New("duplicate entry")

// Storage is the persistence collaborator used by every service.
type Storage interface {
	Close() error
	Health(ctx context.Context) error

	UserStore
	PipelineStore
	WebhookStore
	PushSubscriptionStore
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// PipelineStore persists pipelines together with their definition snapshot.
type PipelineStore interface {
	CreatePipeline(ctx context.Context, p *models.Pipeline) error
	GetPipeline(ctx context.Context, id string) (*models.Pipeline, error)
	GetPipelineByShareToken(ctx context.Context, token string) (*models.Pipeline, error)
	ListPipelines(ctx context.Context, userID string) ([]*models.Pipeline, error)
	ListPipelinesByTriggerType(ctx context.Context, triggerType string) ([]*models.Pipeline, error)
	UpdatePipeline(ctx context.Context, p *models.Pipeline) error
	// IncrementCloneCount adds one to the clone counter in a single statement.
	IncrementCloneCount(ctx context.Context, id string) error
	DeletePipeline(ctx context.Context, id string) error
}

// WebhookStore persists webhook endpoints.
type WebhookStore interface {
	CreateWebhook(ctx context.Context, w *models.Webhook) error
	GetWebhook(ctx context.Context, id string) (*models.Webhook, error)
	GetWebhookByToken(ctx context.Context, token string) (*models.Webhook, error)
	ListWebhooks(ctx context.Context, pipelineID string) ([]*models.Webhook, error)
	UpdateWebhook(ctx context.Context, w *models.Webhook) error
	// RecordWebhookRequest stores the request, sets the trigger time and
	// increments the trigger count in one atomic statement. It returns the
	// row as written, or (nil, nil) when the webhook no longer exists.
	RecordWebhookRequest(ctx context.Context, id string, req *models.RequestData, at time.Time) (*models.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
	DeleteWebhooksByPipeline(ctx context.Context, pipelineID string) error
}

// PushSubscriptionStore persists browser push endpoints.
type PushSubscriptionStore interface {
	// UpsertPushSubscription inserts the subscription or refreshes the keys
	// of the row with the same user and endpoint.
	UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) error
	ListPushSubscriptions(ctx context.Context, userID string) ([]*models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id string) error
	DeletePushSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) error
	TouchPushSubscription(ctx context.Context, id string, at time.Time) error
}
