package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pipeline-hub/internal/models"
)

type pipelineRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Title       string         `db:"title"`
	Summary     string         `db:"summary"`
	TriggerType string         `db:"trigger_type"`
	Definition  string         `db:"definition"`
	IsPublic    bool           `db:"is_public"`
	ShareToken  sql.NullString `db:"share_token"`
	ClonedFrom  sql.NullString `db:"cloned_from"`
	CloneCount  int            `db:"clone_count"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

const pipelineColumns = `id, user_id, title, summary, trigger_type, definition, is_public,
	share_token, cloned_from, clone_count, created_at, updated_at`

func newPipelineRow(p *models.Pipeline) (pipelineRow, error) {
	definition, err := json.Marshal(p.Definition)
	if err != nil {
		return pipelineRow{}, fmt.Errorf("failed to encode definition: %w", err)
	}
	return pipelineRow{
		ID:          p.ID,
		UserID:      p.UserID,
		Title:       p.Title,
		Summary:     p.Summary,
		TriggerType: p.TriggerType(),
		Definition:  string(definition),
		IsPublic:    p.IsPublic,
		ShareToken:  nullString(p.ShareToken),
		ClonedFrom:  nullString(p.ClonedFrom),
		CloneCount:  p.CloneCount,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}, nil
}

func (r pipelineRow) toModel() (*models.Pipeline, error) {
	p := &models.Pipeline{
		ID:         r.ID,
		UserID:     r.UserID,
		Title:      r.Title,
		Summary:    r.Summary,
		IsPublic:   r.IsPublic,
		ShareToken: stringPtr(r.ShareToken),
		ClonedFrom: stringPtr(r.ClonedFrom),
		CloneCount: r.CloneCount,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Definition), &p.Definition); err != nil {
		return nil, fmt.Errorf("failed to decode definition of pipeline %s: %w", r.ID, err)
	}
	return p, nil
}

func (s *Store) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	row, err := newPipelineRow(p)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO pipelines (`+pipelineColumns+`) VALUES (
		:id, :user_id, :title, :summary, :trigger_type, :definition, :is_public,
		:share_token, :cloned_from, :clone_count, :created_at, :updated_at)`, row)
	return mapError(err, "failed to create pipeline")
}

func (s *Store) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	return s.getPipeline(ctx, `SELECT `+pipelineColumns+` FROM pipelines WHERE id = ?`, id)
}

func (s *Store) GetPipelineByShareToken(ctx context.Context, token string) (*models.Pipeline, error) {
	return s.getPipeline(ctx, `SELECT `+pipelineColumns+` FROM pipelines WHERE share_token = ?`, token)
}

func (s *Store) getPipeline(ctx context.Context, query, arg string) (*models.Pipeline, error) {
	var row pipelineRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg)
	if missing, err := notFound(err); missing || err != nil {
		return nil, mapError(err, "failed to get pipeline")
	}
	return row.toModel()
}

func (s *Store) ListPipelines(ctx context.Context, userID string) ([]*models.Pipeline, error) {
	return s.listPipelines(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE user_id = ? ORDER BY updated_at DESC, id`, userID)
}

func (s *Store) ListPipelinesByTriggerType(ctx context.Context, triggerType string) ([]*models.Pipeline, error) {
	return s.listPipelines(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE trigger_type = ? ORDER BY created_at, id`, triggerType)
}

func (s *Store) listPipelines(ctx context.Context, query, arg string) ([]*models.Pipeline, error) {
	var rows []pipelineRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), arg); err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

func (s *Store) UpdatePipeline(ctx context.Context, p *models.Pipeline) error {
	row, err := newPipelineRow(p)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `UPDATE pipelines SET
		title = :title, summary = :summary, trigger_type = :trigger_type, definition = :definition,
		is_public = :is_public, share_token = :share_token, updated_at = :updated_at
		WHERE id = :id`, row)
	return mapError(err, "failed to update pipeline")
}

func (s *Store) IncrementCloneCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE pipelines SET clone_count = clone_count + 1 WHERE id = ?`), id)
	return mapError(err, "failed to increment clone count")
}

func (s *Store) DeletePipeline(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM pipelines WHERE id = ?`), id)
	return mapError(err, "failed to delete pipeline")
}
