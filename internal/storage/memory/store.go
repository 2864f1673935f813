// Package memory implements storage.Storage in process memory. It is meant
// for development and tests; nothing survives a restart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"pipeline-hub/internal/common/utils"
	"pipeline-hub/internal/config"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/storage"
)

func init() {
	storage.Register("memory", func(*config.Config) (storage.Storage, error) {
		return New(), nil
	})
}

// Store keeps copies of every entity so callers never share memory with it.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	pipelines     map[string]*models.Pipeline
	webhooks      map[string]*models.Webhook
	subscriptions map[string]*models.PushSubscription
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         make(map[string]*models.User),
		pipelines:     make(map[string]*models.Pipeline),
		webhooks:      make(map[string]*models.Webhook),
		subscriptions: make(map[string]*models.PushSubscription),
	}
}

func (s *Store) Close() error                     { return nil }
func (s *Store) Health(ctx context.Context) error { return ctx.Err() }

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, storage.ErrDuplicate)
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyPipeline(p *models.Pipeline) (*models.Pipeline, error) {
	c := *p
	def, err := p.Definition.Copy()
	if err != nil {
		return nil, err
	}
	c.Definition = def
	c.ShareToken = copyString(p.ShareToken)
	c.ClonedFrom = copyString(p.ClonedFrom)
	return &c, nil
}

func copyWebhook(w *models.Webhook) (*models.Webhook, error) {
	c := *w
	if w.LastRequest != nil {
		data, err := json.Marshal(w.LastRequest)
		if err != nil {
			return nil, err
		}
		c.LastRequest = &models.RequestData{}
		if err := json.Unmarshal(data, c.LastRequest); err != nil {
			return nil, err
		}
	}
	c.LastTriggeredAt = copyTime(w.LastTriggeredAt)
	return &c, nil
}

func copySubscription(sub *models.PushSubscription) *models.PushSubscription {
	c := *sub
	c.LastUsedAt = copyTime(sub.LastUsedAt)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return duplicate("failed to create user")
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return duplicate("failed to create user")
		}
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) shareTokenTaken(token *string, exceptID string) bool {
	if token == nil {
		return false
	}
	for id, p := range s.pipelines {
		if id != exceptID && p.ShareToken != nil && *p.ShareToken == *token {
			return true
		}
	}
	return false
}

func (s *Store) CreatePipeline(_ context.Context, p *models.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pipelines[p.ID]; exists || s.shareTokenTaken(p.ShareToken, "") {
		return duplicate("failed to create pipeline")
	}
	c, err := copyPipeline(p)
	if err != nil {
		return err
	}
	s.pipelines[p.ID] = c
	return nil
}

func (s *Store) GetPipeline(_ context.Context, id string) (*models.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.pipelines[id]; ok {
		return copyPipeline(p)
	}
	return nil, nil
}

func (s *Store) GetPipelineByShareToken(_ context.Context, token string) (*models.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pipelines {
		if p.ShareToken != nil && *p.ShareToken == token {
			return copyPipeline(p)
		}
	}
	return nil, nil
}

func (s *Store) ListPipelines(_ context.Context, userID string) ([]*models.Pipeline, error) {
	pipelines, err := s.filterPipelines(func(p *models.Pipeline) bool { return p.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pipelines, func(i, j int) bool {
		return pipelines[i].UpdatedAt.After(pipelines[j].UpdatedAt)
	})
	return pipelines, nil
}

func (s *Store) ListPipelinesByTriggerType(_ context.Context, triggerType string) ([]*models.Pipeline, error) {
	pipelines, err := s.filterPipelines(func(p *models.Pipeline) bool { return p.TriggerType() == triggerType })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pipelines, func(i, j int) bool {
		return pipelines[i].CreatedAt.Before(pipelines[j].CreatedAt)
	})
	return pipelines, nil
}

func (s *Store) filterPipelines(keep func(*models.Pipeline) bool) ([]*models.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pipelines := make([]*models.Pipeline, 0)
	for _, p := range s.pipelines {
		if !keep(p) {
			continue
		}
		c, err := copyPipeline(p)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, c)
	}
	sort.Slice(pipelines, func(i, j int) bool { return pipelines[i].ID < pipelines[j].ID })
	return pipelines, nil
}

func (s *Store) UpdatePipeline(_ context.Context, p *models.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.pipelines[p.ID]
	if !ok {
		return nil
	}
	if s.shareTokenTaken(p.ShareToken, p.ID) {
		return duplicate("failed to update pipeline")
	}
	c, err := copyPipeline(p)
	if err != nil {
		return err
	}
	c.UserID = stored.UserID
	c.ClonedFrom = stored.ClonedFrom
	c.CloneCount = stored.CloneCount
	c.CreatedAt = stored.CreatedAt
	s.pipelines[p.ID] = c
	return nil
}

func (s *Store) IncrementCloneCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pipelines[id]; ok {
		p.CloneCount++
	}
	return nil
}

func (s *Store) DeletePipeline(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pipelines, id)
	return nil
}

func (s *Store) CreateWebhook(_ context.Context, w *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.webhooks[w.ID]; exists {
		return duplicate("failed to create webhook")
	}
	for _, existing := range s.webhooks {
		if existing.Token == w.Token {
			return duplicate("failed to create webhook")
		}
	}
	c, err := copyWebhook(w)
	if err != nil {
		return err
	}
	s.webhooks[w.ID] = c
	return nil
}

func (s *Store) GetWebhook(_ context.Context, id string) (*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.webhooks[id]; ok {
		return copyWebhook(w)
	}
	return nil, nil
}

func (s *Store) GetWebhookByToken(_ context.Context, token string) (*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.webhooks {
		if w.Token == token {
			return copyWebhook(w)
		}
	}
	return nil, nil
}

func (s *Store) ListWebhooks(_ context.Context, pipelineID string) ([]*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhooks := make([]*models.Webhook, 0)
	for _, w := range s.webhooks {
		if w.PipelineID != pipelineID {
			continue
		}
		c, err := copyWebhook(w)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, c)
	}
	sort.Slice(webhooks, func(i, j int) bool {
		if !webhooks[i].CreatedAt.Equal(webhooks[j].CreatedAt) {
			return webhooks[i].CreatedAt.Before(webhooks[j].CreatedAt)
		}
		return webhooks[i].ID < webhooks[j].ID
	})
	return webhooks, nil
}

func (s *Store) UpdateWebhook(_ context.Context, w *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.webhooks[w.ID]; ok {
		stored.Method = w.Method
		stored.IsActive = w.IsActive
	}
	return nil
}

func (s *Store) RecordWebhookRequest(_ context.Context, id string, req *models.RequestData, at time.Time) (*models.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.webhooks[id]
	if !ok {
		return nil, nil
	}
	next, err := copyWebhook(&models.Webhook{LastRequest: req})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request data: %w", err)
	}
	stored.LastRequest = next.LastRequest
	stored.LastTriggeredAt = &at
	stored.TriggerCount++
	return copyWebhook(stored)
}

func (s *Store) DeleteWebhook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.webhooks, id)
	return nil
}

func (s *Store) DeleteWebhooksByPipeline(_ context.Context, pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range s.webhooks {
		if w.PipelineID == pipelineID {
			delete(s.webhooks, id)
		}
	}
	return nil
}

func (s *Store) UpsertPushSubscription(_ context.Context, sub *models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.UserID == sub.UserID && existing.Endpoint == sub.Endpoint {
			existing.P256dhKey = sub.P256dhKey
			existing.AuthKey = sub.AuthKey
			*sub = *copySubscription(existing)
			return nil
		}
	}
	if sub.ID == "" {
		sub.ID = utils.NewID()
	}
	s.subscriptions[sub.ID] = copySubscription(sub)
	return nil
}

func (s *Store) ListPushSubscriptions(_ context.Context, userID string) ([]*models.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*models.PushSubscription, 0)
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			subs = append(subs, copySubscription(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (s *Store) DeletePushSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions, id)
	return nil
}

func (s *Store) DeletePushSubscriptionByEndpoint(_ context.Context, userID, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subscriptions {
		if sub.UserID == userID && sub.Endpoint == endpoint {
			delete(s.subscriptions, id)
		}
	}
	return nil
}

func (s *Store) TouchPushSubscription(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscriptions[id]; ok {
		sub.LastUsedAt = &at
	}
	return nil
}
