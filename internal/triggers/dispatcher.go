package triggers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/push"
	"pipeline-hub/internal/storage"
)

// Notifier delivers a payload to every device of a user.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, payload any) ([]push.DeliveryResult, error)
}

// PipelineOwner resolves a pipeline the caller owns.
type PipelineOwner interface {
	Get(ctx context.Context, id, userID string) (*models.Pipeline, error)
}

// Result is returned to the caller of a trigger.
type Result struct {
	Success    bool                  `json:"success"`
	Triggered  bool                  `json:"triggered"`
	Deliveries []push.DeliveryResult `json:"deliveries,omitempty"`
}

// Dispatcher runs the webhook and manual trigger paths.
type Dispatcher struct {
	webhooks  storage.WebhookStore
	pipelines storage.PipelineStore
	owner     PipelineOwner
	notifier  Notifier
	now       func() time.Time
	logger    logging.Logger

	inflight sync.WaitGroup
}

func NewDispatcher(store storage.Storage, owner PipelineOwner, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		webhooks:  store,
		pipelines: store,
		owner:     owner,
		notifier:  notifier,
		now:       time.Now,
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "dispatcher"}),
	}
}

// HandleWebhook resolves token, checks the method, records the request and
// notifies the pipeline owner. Once the request is recorded the call
// succeeds; delivery runs in the background and its outcome is only logged.
func (d *Dispatcher) HandleWebhook(ctx context.Context, token, method string, req *models.RequestData) (*Result, error) {
	w, err := d.webhooks.GetWebhookByToken(ctx, token)
	if err != nil {
		return nil, errors.InternalError("failed to resolve webhook", err)
	}
	if w == nil || !w.IsActive {
		return nil, errors.NotFoundError("webhook")
	}

	if !strings.EqualFold(method, w.Method) {
		return nil, errors.ForbiddenError(fmt.Sprintf("method %s is not allowed for this webhook", strings.ToUpper(method)))
	}

	at := d.now().UTC()
	recorded, err := d.webhooks.RecordWebhookRequest(ctx, w.ID, req, at)
	if err != nil {
		return nil, errors.InternalError("failed to record webhook request", err)
	}
	if recorded == nil {
		return nil, errors.NotFoundError("webhook")
	}

	pipelineName := d.pipelineName(ctx, w.PipelineID)
	full := &Notification{
		Type:         TypeWebhook,
		WebhookID:    w.ID,
		PipelineID:   w.PipelineID,
		PipelineName: pipelineName,
		Data:         req,
		Timestamp:    at.Format(time.RFC3339Nano),
	}
	body, large, err := encodeWithinLimit(full, webhookPointer(w.ID, pipelineName))
	if err != nil {
		return nil, err
	}

	logger := d.logger.WithFields(
		logging.Field{Key: "webhook_id", Value: w.ID},
		logging.Field{Key: "pipeline_id", Value: w.PipelineID},
	)
	logger.Info("Webhook triggered",
		logging.Field{Key: "trigger_count", Value: recorded.TriggerCount},
		logging.Field{Key: "large", Value: large},
	)

	d.dispatch(context.WithoutCancel(ctx), w.UserID, body, logger)
	return &Result{Success: true, Triggered: true}, nil
}

// RunManual triggers a pipeline on behalf of its owner and waits for the
// deliveries to settle.
func (d *Dispatcher) RunManual(ctx context.Context, pipelineID, userID string, data any) (*Result, error) {
	p, err := d.owner.Get(ctx, pipelineID, userID)
	if err != nil {
		return nil, err
	}

	full := &Notification{
		Type:         TypeManual,
		PipelineID:   p.ID,
		PipelineName: p.Title,
		Data:         data,
		Timestamp:    d.now().UTC().Format(time.RFC3339Nano),
	}
	body, _, err := encodeWithinLimit(full, manualPointer(p.ID, p.Title))
	if err != nil {
		return nil, err
	}

	results, err := d.notifier.SendToUser(context.WithoutCancel(ctx), p.UserID, body)
	if err != nil {
		d.logger.Error("Manual run delivery failed", err, logging.Field{Key: "pipeline_id", Value: p.ID})
		results = nil
	}

	d.logger.Info("Pipeline run manually", logging.Field{Key: "pipeline_id", Value: p.ID})
	return &Result{Success: true, Triggered: true, Deliveries: results}, nil
}

// Wait blocks until background deliveries started by HandleWebhook finish.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, userID string, body []byte, logger logging.Logger) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if _, err := d.notifier.SendToUser(ctx, userID, body); err != nil {
			logger.Error("Failed to deliver webhook notification", err)
		}
	}()
}

func (d *Dispatcher) pipelineName(ctx context.Context, id string) string {
	p, err := d.pipelines.GetPipeline(ctx, id)
	if err != nil {
		d.logger.Warn("Failed to load pipeline for notification",
			logging.Field{Key: "pipeline_id", Value: id}, logging.Err(err))
		return ""
	}
	if p == nil {
		return ""
	}
	return p.Title
}
