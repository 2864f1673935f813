// Package webhooks manages the inbound endpoints that trigger pipelines.
package webhooks

import (
	"context"
	"strings"
	"time"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/common/utils"
	"pipeline-hub/internal/common/validation"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/storage"
)

// PipelineOwner resolves a pipeline the caller owns.
type PipelineOwner interface {
	Get(ctx context.Context, id, userID string) (*models.Pipeline, error)
}

// CreateRequest is the body of a create call. Method defaults to POST.
type CreateRequest struct {
	Method string `json:"method" validate:"omitempty,http_method"`
}

// UpdateRequest changes the method or toggles the webhook.
type UpdateRequest struct {
	Method   *string `json:"method" validate:"omitempty,http_method"`
	IsActive *bool   `json:"isActive"`
}

// View is a webhook together with the URL callers should hit.
type View struct {
	*models.Webhook
	URL string `json:"url"`
}

// LastRequest is the most recent captured call of a webhook.
type LastRequest struct {
	WebhookID       string              `json:"webhookId"`
	Request         *models.RequestData `json:"request"`
	LastTriggeredAt *time.Time          `json:"lastTriggeredAt"`
	TriggerCount    int64               `json:"triggerCount"`
}

type Service struct {
	store     storage.WebhookStore
	pipelines PipelineOwner
	baseURL   string
	now       func() time.Time
	logger    logging.Logger
}

// NewService creates the webhook service. baseURL is the externally
// visible origin used to build webhook URLs.
func NewService(store storage.WebhookStore, pipelines PipelineOwner, baseURL string) *Service {
	return &Service{
		store:     store,
		pipelines: pipelines,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "webhooks"}),
	}
}

func (s *Service) Create(ctx context.Context, pipelineID, userID string, req *CreateRequest) (*View, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.pipelines.Get(ctx, pipelineID, userID); err != nil {
		return nil, err
	}

	token, err := utils.GenerateToken(utils.WebhookTokenBytes)
	if err != nil {
		return nil, errors.InternalError("failed to generate webhook token", err)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "POST"
	}

	w := &models.Webhook{
		ID:         utils.NewID(),
		PipelineID: pipelineID,
		UserID:     userID,
		Token:      token,
		Method:     method,
		IsActive:   true,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateWebhook(ctx, w); err != nil {
		return nil, errors.InternalError("failed to create webhook", err)
	}

	s.logger.Info("Webhook created",
		logging.Field{Key: "webhook_id", Value: w.ID},
		logging.Field{Key: "pipeline_id", Value: pipelineID},
		logging.Field{Key: "method", Value: method},
	)
	return s.view(w), nil
}

func (s *Service) List(ctx context.Context, pipelineID, userID string) ([]*View, error) {
	if _, err := s.pipelines.Get(ctx, pipelineID, userID); err != nil {
		return nil, err
	}
	hooks, err := s.store.ListWebhooks(ctx, pipelineID)
	if err != nil {
		return nil, errors.InternalError("failed to list webhooks", err)
	}
	views := make([]*View, 0, len(hooks))
	for _, w := range hooks {
		views = append(views, s.view(w))
	}
	return views, nil
}

func (s *Service) Update(ctx context.Context, id, userID string, req *UpdateRequest) (*View, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	w, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Method != nil {
		w.Method = strings.ToUpper(*req.Method)
	}
	if req.IsActive != nil {
		w.IsActive = *req.IsActive
	}
	if err := s.store.UpdateWebhook(ctx, w); err != nil {
		return nil, errors.InternalError("failed to update webhook", err)
	}

	s.logger.Info("Webhook updated",
		logging.Field{Key: "webhook_id", Value: w.ID},
		logging.Field{Key: "method", Value: w.Method},
		logging.Field{Key: "active", Value: w.IsActive},
	)
	return s.view(w), nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.store.DeleteWebhook(ctx, id); err != nil {
		return errors.InternalError("failed to delete webhook", err)
	}
	s.logger.Info("Webhook deleted", logging.Field{Key: "webhook_id", Value: id})
	return nil
}

// LastRequest returns the full data of the latest call, used by clients
// that received a truncated notification.
func (s *Service) LastRequest(ctx context.Context, id, userID string) (*LastRequest, error) {
	w, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if w.LastRequest == nil {
		return nil, errors.NotFoundError("webhook request")
	}
	return &LastRequest{
		WebhookID:       w.ID,
		Request:         w.LastRequest,
		LastTriggeredAt: w.LastTriggeredAt,
		TriggerCount:    w.TriggerCount,
	}, nil
}

func (s *Service) owned(ctx context.Context, id, userID string) (*models.Webhook, error) {
	w, err := s.store.GetWebhook(ctx, id)
	if err != nil {
		return nil, errors.InternalError("failed to load webhook", err)
	}
	if w == nil {
		return nil, errors.NotFoundError("webhook")
	}
	if w.UserID != userID {
		return nil, errors.ForbiddenError("you do not own this webhook")
	}
	return w, nil
}

func (s *Service) view(w *models.Webhook) *View {
	return &View{Webhook: w, URL: s.baseURL + "/webhook/" + w.Token}
}
