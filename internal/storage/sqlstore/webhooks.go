package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pipeline-hub/internal/models"
)

type webhookRow struct {
	ID              string         `db:"id"`
	PipelineID      string         `db:"pipeline_id"`
	UserID          string         `db:"user_id"`
	Token           string         `db:"token"`
	Method          string         `db:"method"`
	IsActive        bool           `db:"is_active"`
	LastRequest     sql.NullString `db:"last_request"`
	LastTriggeredAt sql.NullTime   `db:"last_triggered_at"`
	TriggerCount    int64          `db:"trigger_count"`
	CreatedAt       time.Time      `db:"created_at"`
}

const webhookColumns = `id, pipeline_id, user_id, token, method, is_active,
	last_request, last_triggered_at, trigger_count, created_at`

func encodeRequest(req *models.RequestData) (sql.NullString, error) {
	if req == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(req)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode request data: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func newWebhookRow(w *models.Webhook) (webhookRow, error) {
	lastRequest, err := encodeRequest(w.LastRequest)
	if err != nil {
		return webhookRow{}, err
	}
	return webhookRow{
		ID:              w.ID,
		PipelineID:      w.PipelineID,
		UserID:          w.UserID,
		Token:           w.Token,
		Method:          w.Method,
		IsActive:        w.IsActive,
		LastRequest:     lastRequest,
		LastTriggeredAt: nullTime(w.LastTriggeredAt),
		TriggerCount:    w.TriggerCount,
		CreatedAt:       w.CreatedAt.UTC(),
	}, nil
}

func (r webhookRow) toModel() (*models.Webhook, error) {
	w := &models.Webhook{
		ID:              r.ID,
		PipelineID:      r.PipelineID,
		UserID:          r.UserID,
		Token:           r.Token,
		Method:          r.Method,
		IsActive:        r.IsActive,
		LastTriggeredAt: timePtr(r.LastTriggeredAt),
		TriggerCount:    r.TriggerCount,
		CreatedAt:       r.CreatedAt,
	}
	if r.LastRequest.Valid {
		w.LastRequest = &models.RequestData{}
		if err := json.Unmarshal([]byte(r.LastRequest.String), w.LastRequest); err != nil {
			return nil, fmt.Errorf("failed to decode last request of webhook %s: %w", r.ID, err)
		}
	}
	return w, nil
}

func (s *Store) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	row, err := newWebhookRow(w)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO webhooks (`+webhookColumns+`) VALUES (
		:id, :pipeline_id, :user_id, :token, :method, :is_active,
		:last_request, :last_triggered_at, :trigger_count, :created_at)`, row)
	return mapError(err, "failed to create webhook")
}

func (s *Store) GetWebhook(ctx context.Context, id string) (*models.Webhook, error) {
	return s.getWebhook(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id)
}

func (s *Store) GetWebhookByToken(ctx context.Context, token string) (*models.Webhook, error) {
	return s.getWebhook(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE token = ?`, token)
}

func (s *Store) getWebhook(ctx context.Context, query string, args ...interface{}) (*models.Webhook, error) {
	var row webhookRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...)
	if missing, err := notFound(err); missing || err != nil {
		return nil, mapError(err, "failed to get webhook")
	}
	return row.toModel()
}

func (s *Store) ListWebhooks(ctx context.Context, pipelineID string) ([]*models.Webhook, error) {
	var rows []webhookRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT `+webhookColumns+` FROM webhooks WHERE pipeline_id = ? ORDER BY created_at, id`), pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	webhooks := make([]*models.Webhook, 0, len(rows))
	for _, row := range rows {
		w, err := row.toModel()
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, nil
}

func (s *Store) UpdateWebhook(ctx context.Context, w *models.Webhook) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE webhooks SET method = ?, is_active = ? WHERE id = ?`),
		w.Method, w.IsActive, w.ID)
	return mapError(err, "failed to update webhook")
}

func (s *Store) RecordWebhookRequest(ctx context.Context, id string, req *models.RequestData, at time.Time) (*models.Webhook, error) {
	lastRequest, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}
	return s.getWebhook(ctx, `UPDATE webhooks SET
		last_request = ?, last_triggered_at = ?, trigger_count = trigger_count + 1
		WHERE id = ? RETURNING `+webhookColumns,
		lastRequest, at.UTC(), id)
}

func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM webhooks WHERE id = ?`), id)
	return mapError(err, "failed to delete webhook")
}

func (s *Store) DeleteWebhooksByPipeline(ctx context.Context, pipelineID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM webhooks WHERE pipeline_id = ?`), pipelineID)
	return mapError(err, "failed to delete webhooks")
}
