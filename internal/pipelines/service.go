// Package pipelines owns the lifecycle of user pipelines: creation,
// merge updates, sharing, cloning and deletion.
package pipelines

import (
	"context"
	"strings"
	"time"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/common/utils"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/storage"
)

// Scheduler is told about pipelines whose trigger may need a timer.
type Scheduler interface {
	Sync(p *models.Pipeline)
	Remove(pipelineID string)
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Title    string                `json:"title"`
	Summary  *string               `json:"summary"`
	Trigger  *models.Trigger       `json:"trigger"`
	Nodes    []models.PipelineNode `json:"nodes"`
	Pipes    []models.Pipe         `json:"pipes"`
	IsPublic *bool                 `json:"isPublic"`
}

// UpdateInput is a partial update. Nil fields keep their stored value.
type UpdateInput struct {
	Title    *string                `json:"title"`
	Summary  *string                `json:"summary"`
	Trigger  *models.Trigger        `json:"trigger"`
	Nodes    *[]models.PipelineNode `json:"nodes"`
	Pipes    *[]models.Pipe         `json:"pipes"`
	IsPublic *bool                  `json:"isPublic"`
}

// SharedPipeline is the public read-only view behind a share token.
type SharedPipeline struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Summary    string            `json:"summary"`
	Definition models.Definition `json:"definition"`
	CloneCount int               `json:"cloneCount"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type Service struct {
	store     storage.Storage
	scheduler Scheduler
	now       func() time.Time
	logger    logging.Logger
}

// NewService creates the pipeline service. scheduler may be nil.
func NewService(store storage.Storage, scheduler Scheduler) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		now:       time.Now,
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "pipelines"}),
	}
}

// SetScheduler replaces the scheduler notified of trigger changes.
func (s *Service) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

func (s *Service) Create(ctx context.Context, userID string, in *CreateInput) (*models.Pipeline, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.ValidationError("title is required")
	}

	def := models.Definition{Trigger: in.Trigger, Nodes: in.Nodes, Pipes: in.Pipes}
	if err := prepareDefinition(&def); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &models.Pipeline{
		ID:         utils.NewID(),
		UserID:     userID,
		Title:      title,
		Definition: def,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.Summary != nil {
		p.Summary = *in.Summary
	}
	if in.IsPublic != nil && *in.IsPublic {
		if err := s.publish(p); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreatePipeline(ctx, p); err != nil {
		return nil, errors.InternalError("failed to create pipeline", err)
	}

	s.logger.Info("Pipeline created",
		logging.Field{Key: "pipeline_id", Value: p.ID},
		logging.Field{Key: "user_id", Value: userID},
		logging.Field{Key: "trigger", Value: p.TriggerType()},
		logging.Field{Key: "nodes", Value: len(p.Definition.Nodes)},
	)
	s.sync(p)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id, userID string, in *UpdateInput) (*models.Pipeline, error) {
	p, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, errors.ValidationError("title must not be empty")
		}
		p.Title = title
	}
	if in.Summary != nil {
		p.Summary = *in.Summary
	}

	if in.Trigger != nil || in.Nodes != nil || in.Pipes != nil {
		def := p.Definition
		if in.Trigger != nil {
			def.Trigger = in.Trigger
		}
		if in.Nodes != nil {
			def.Nodes = *in.Nodes
		}
		if in.Pipes != nil {
			def.Pipes = *in.Pipes
		}
		if err := prepareDefinition(&def); err != nil {
			return nil, err
		}
		p.Definition = def
	}

	if in.IsPublic != nil {
		p.IsPublic = *in.IsPublic
		if p.IsPublic && p.ShareToken == nil {
			if err := s.publish(p); err != nil {
				return nil, err
			}
		}
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdatePipeline(ctx, p); err != nil {
		return nil, errors.InternalError("failed to update pipeline", err)
	}

	s.logger.Info("Pipeline updated", logging.Field{Key: "pipeline_id", Value: p.ID})
	s.sync(p)
	return p, nil
}

// Clone copies a public pipeline into byUserID's account and bumps the
// source's clone counter.
func (s *Service) Clone(ctx context.Context, shareToken, byUserID string) (*models.Pipeline, error) {
	source, err := s.shared(ctx, shareToken)
	if err != nil {
		return nil, err
	}

	def, err := source.Definition.Copy()
	if err != nil {
		return nil, errors.InternalError("failed to copy pipeline definition", err)
	}

	now := s.now().UTC()
	sourceID := source.ID
	clone := &models.Pipeline{
		ID:         utils.NewID(),
		UserID:     byUserID,
		Title:      source.Title + " (Copy)",
		Summary:    source.Summary,
		Definition: def,
		ClonedFrom: &sourceID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreatePipeline(ctx, clone); err != nil {
		return nil, errors.InternalError("failed to create cloned pipeline", err)
	}

	if err := s.store.IncrementCloneCount(ctx, source.ID); err != nil {
		s.logger.Warn("Failed to increment clone count",
			logging.Field{Key: "pipeline_id", Value: source.ID}, logging.Err(err))
	}

	s.logger.Info("Pipeline cloned",
		logging.Field{Key: "pipeline_id", Value: clone.ID},
		logging.Field{Key: "cloned_from", Value: source.ID},
		logging.Field{Key: "user_id", Value: byUserID},
	)
	s.sync(clone)
	return clone, nil
}

// Delete removes the pipeline together with its webhooks.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}

	if s.scheduler != nil {
		s.scheduler.Remove(id)
	}
	if err := s.store.DeleteWebhooksByPipeline(ctx, id); err != nil {
		return errors.InternalError("failed to delete pipeline webhooks", err)
	}
	if err := s.store.DeletePipeline(ctx, id); err != nil {
		return errors.InternalError("failed to delete pipeline", err)
	}

	s.logger.Info("Pipeline deleted", logging.Field{Key: "pipeline_id", Value: id})
	return nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (*models.Pipeline, error) {
	return s.owned(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID string) ([]*models.Pipeline, error) {
	list, err := s.store.ListPipelines(ctx, userID)
	if err != nil {
		return nil, errors.InternalError("failed to list pipelines", err)
	}
	return list, nil
}

// GetShared returns the public view of a published pipeline.
func (s *Service) GetShared(ctx context.Context, shareToken string) (*SharedPipeline, error) {
	p, err := s.shared(ctx, shareToken)
	if err != nil {
		return nil, err
	}
	return &SharedPipeline{
		ID:         p.ID,
		Title:      p.Title,
		Summary:    p.Summary,
		Definition: p.Definition,
		CloneCount: p.CloneCount,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}, nil
}

// owned loads a pipeline and checks that userID owns it.
func (s *Service) owned(ctx context.Context, id, userID string) (*models.Pipeline, error) {
	p, err := s.store.GetPipeline(ctx, id)
	if err != nil {
		return nil, errors.InternalError("failed to load pipeline", err)
	}
	if p == nil {
		return nil, errors.NotFoundError("pipeline")
	}
	if p.UserID != userID {
		return nil, errors.ForbiddenError("you do not own this pipeline")
	}
	return p, nil
}

func (s *Service) shared(ctx context.Context, shareToken string) (*models.Pipeline, error) {
	if shareToken == "" {
		return nil, errors.NotFoundError("shared pipeline")
	}
	p, err := s.store.GetPipelineByShareToken(ctx, shareToken)
	if err != nil {
		return nil, errors.InternalError("failed to load shared pipeline", err)
	}
	if p == nil || !p.IsPublic {
		return nil, errors.NotFoundError("shared pipeline")
	}
	return p, nil
}

func (s *Service) publish(p *models.Pipeline) error {
	p.IsPublic = true
	if p.ShareToken != nil {
		return nil
	}
	token, err := utils.GenerateToken(utils.ShareTokenBytes)
	if err != nil {
		return errors.InternalError("failed to generate share token", err)
	}
	p.ShareToken = &token
	return nil
}

func (s *Service) sync(p *models.Pipeline) {
	if s.scheduler != nil {
		s.scheduler.Sync(p)
	}
}
