// Package storagetest holds the behaviour every storage.Storage adapter must
// share. Adapter packages run it from their own tests.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-hub/internal/common/utils"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/nodes"
	"pipeline-hub/internal/storage"
)

// Run exercises an adapter. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("pipelines", func(t *testing.T) { testPipelines(t, newStore(t)) })
	t.Run("clone count", func(t *testing.T) { testCloneCount(t, newStore(t)) })
	t.Run("webhooks", func(t *testing.T) { testWebhooks(t, newStore(t)) })
	t.Run("concurrent triggers", func(t *testing.T) { testConcurrentTriggers(t, newStore(t)) })
	t.Run("push subscriptions", func(t *testing.T) { testPushSubscriptions(t, newStore(t)) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SeedUser stores a user with a random id and email.
func SeedUser(t *testing.T, s storage.Storage) *models.User {
	t.Helper()
	id := utils.NewID()
	user := &models.User{ID: id, Email: id + "@example.com", PasswordHash: "hash", CreatedAt: now()}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

// SamplePipeline builds an unsaved pipeline with a webhook trigger and two
// connected nodes.
func SamplePipeline(t *testing.T, userID string) *models.Pipeline {
	t.Helper()
	var def models.Definition
	require.NoError(t, json.Unmarshal([]byte(`{
		"trigger": {"type": "webhook", "config": {"method": "POST"}},
		"nodes": [
			{"id": "n1", "type": "manual_input", "title": "Ask", "outputs": ["output"], "config": {"label": "Name"}},
			{"id": "n2", "type": "send_email", "title": "Mail", "inputs": ["input"],
			 "config": {"to": ["ops@example.com"], "subject": "Hi", "body": "Hello"}}
		],
		"pipes": [{"id": "p1", "sourceId": "n1", "sourceSide": "output", "targetId": "n2", "targetSide": "input"}]
	}`), &def))

	ts := now()
	return &models.Pipeline{
		ID:         utils.NewID(),
		UserID:     userID,
		Title:      "Sample",
		Summary:    "A sample pipeline",
		Definition: def,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := SeedUser(t, s)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = s.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	missing, err := s.GetUser(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	err = s.CreateUser(ctx, &models.User{ID: utils.NewID(), Email: user.Email, PasswordHash: "x", CreatedAt: now()})
	assert.True(t, errors.Is(err, storage.ErrDuplicate), "got %v", err)
}

func testPipelines(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := SeedUser(t, s)
	other := SeedUser(t, s)

	p := SamplePipeline(t, user.ID)
	require.NoError(t, s.CreatePipeline(ctx, p))

	got, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Sample", got.Title)
	assert.Equal(t, "webhook", got.TriggerType())
	require.Len(t, got.Definition.Nodes, 2)
	email, ok := got.Definition.Nodes[1].Config.(*nodes.SendEmail)
	require.True(t, ok)
	assert.Equal(t, []string{"ops@example.com"}, email.To)
	assert.Equal(t, p.Definition.Pipes, got.Definition.Pipes)
	assert.Nil(t, got.ShareToken)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Millisecond)

	missing, err := s.GetPipeline(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	token := "share-token-1"
	got.IsPublic = true
	got.ShareToken = &token
	got.Title = "Renamed"
	got.UpdatedAt = now().Add(time.Second)
	require.NoError(t, s.UpdatePipeline(ctx, got))

	shared, err := s.GetPipelineByShareToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, shared)
	assert.Equal(t, p.ID, shared.ID)
	assert.Equal(t, "Renamed", shared.Title)
	assert.True(t, shared.IsPublic)

	clash := SamplePipeline(t, other.ID)
	clash.ShareToken = &token
	err = s.CreatePipeline(ctx, clash)
	assert.True(t, errors.Is(err, storage.ErrDuplicate), "got %v", err)

	second := SamplePipeline(t, user.ID)
	second.Definition.Trigger = &models.Trigger{Type: nodes.TriggerSchedule}
	second.Definition.Trigger.Config, err = nodes.NewTrigger(nodes.TriggerSchedule, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreatePipeline(ctx, second))

	list, err := s.ListPipelines(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListPipelines(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	scheduled, err := s.ListPipelinesByTriggerType(ctx, nodes.TriggerSchedule)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, second.ID, scheduled[0].ID)

	require.NoError(t, s.DeletePipeline(ctx, p.ID))
	gone, err := s.GetPipeline(ctx, p.ID)
	assert.NoError(t, err)
	assert.Nil(t, gone)
}

func testCloneCount(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := SeedUser(t, s)
	p := SamplePipeline(t, user.ID)
	p.CloneCount = 4
	require.NoError(t, s.CreatePipeline(ctx, p))

	require.NoError(t, s.IncrementCloneCount(ctx, p.ID))
	got, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CloneCount)

	// A save from a stale copy must not roll the counter back.
	p.Title = "stale"
	require.NoError(t, s.UpdatePipeline(ctx, p))
	got, err = s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CloneCount)
	assert.Equal(t, "stale", got.Title)
}

func testWebhooks(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := SeedUser(t, s)
	p := SamplePipeline(t, user.ID)
	require.NoError(t, s.CreatePipeline(ctx, p))

	w := &models.Webhook{
		ID:         utils.NewID(),
		PipelineID: p.ID,
		UserID:     user.ID,
		Token:      "tok-1",
		Method:     "POST",
		IsActive:   true,
		CreatedAt:  now(),
	}
	require.NoError(t, s.CreateWebhook(ctx, w))

	got, err := s.GetWebhookByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, w.ID, got.ID)
	assert.Nil(t, got.LastRequest)
	assert.Nil(t, got.LastTriggeredAt)
	assert.Zero(t, got.TriggerCount)

	dup := *w
	dup.ID = utils.NewID()
	err = s.CreateWebhook(ctx, &dup)
	assert.True(t, errors.Is(err, storage.ErrDuplicate), "got %v", err)

	first := &models.RequestData{Body: map[string]any{"n": json.Number("1")}, Query: map[string]any{}, Headers: map[string]string{}}
	secondReq := &models.RequestData{
		Body:    map[string]any{"n": json.Number("9007199254740993")},
		Query:   map[string]any{"q": "x"},
		Headers: map[string]string{"X-Test": "yes"},
	}
	at1 := now()
	at2 := at1.Add(time.Minute)

	recorded, err := s.RecordWebhookRequest(ctx, w.ID, first, at1)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.EqualValues(t, 1, recorded.TriggerCount)

	recorded, err = s.RecordWebhookRequest(ctx, w.ID, secondReq, at2)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.EqualValues(t, 2, recorded.TriggerCount)
	assert.Equal(t, secondReq, recorded.LastRequest)
	require.NotNil(t, recorded.LastTriggeredAt)
	assert.WithinDuration(t, at2, *recorded.LastTriggeredAt, time.Millisecond)

	none, err := s.RecordWebhookRequest(ctx, "nope", first, at1)
	assert.NoError(t, err)
	assert.Nil(t, none)

	got.IsActive = false
	got.Method = "PUT"
	require.NoError(t, s.UpdateWebhook(ctx, got))
	got, err = s.GetWebhook(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "PUT", got.Method)
	assert.EqualValues(t, 2, got.TriggerCount)

	other := &models.Webhook{ID: utils.NewID(), PipelineID: p.ID, UserID: user.ID, Token: "tok-2",
		Method: "GET", IsActive: true, CreatedAt: now().Add(time.Second)}
	require.NoError(t, s.CreateWebhook(ctx, other))

	list, err := s.ListWebhooks(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, w.ID, list[0].ID)

	require.NoError(t, s.DeleteWebhook(ctx, other.ID))
	require.NoError(t, s.DeleteWebhooksByPipeline(ctx, p.ID))
	list, err = s.ListWebhooks(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testConcurrentTriggers(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := SeedUser(t, s)
	p := SamplePipeline(t, user.ID)
	require.NoError(t, s.CreatePipeline(ctx, p))

	w := &models.Webhook{ID: utils.NewID(), PipelineID: p.ID, UserID: user.ID, Token: "tok-busy",
		Method: "POST", IsActive: true, CreatedAt: now()}
	require.NoError(t, s.CreateWebhook(ctx, w))

	const n = 50
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts []int
		errs   []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &models.RequestData{Body: map[string]any{"i": json.Number(strconv.Itoa(i))}, Query: map[string]any{}, Headers: map[string]string{}}
			recorded, err := s.RecordWebhookRequest(ctx, w.ID, req, now())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			counts = append(counts, int(recorded.TriggerCount))
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Ints(counts)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, counts, "every trigger sees its own count")

	got, err := s.GetWebhook(ctx, w.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, got.TriggerCount)
	require.NotNil(t, got.LastRequest)
}

func testPushSubscriptions(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := SeedUser(t, s)

	sub := &models.PushSubscription{
		ID:        utils.NewID(),
		UserID:    user.ID,
		Endpoint:  "https://push.example.com/abc",
		P256dhKey: "p1",
		AuthKey:   "a1",
		CreatedAt: now(),
	}
	require.NoError(t, s.UpsertPushSubscription(ctx, sub))
	firstID := sub.ID

	again := &models.PushSubscription{
		ID:        utils.NewID(),
		UserID:    user.ID,
		Endpoint:  "https://push.example.com/abc",
		P256dhKey: "p2",
		AuthKey:   "a2",
		CreatedAt: now(),
	}
	require.NoError(t, s.UpsertPushSubscription(ctx, again))
	assert.Equal(t, firstID, again.ID, "upsert keeps the existing row")

	subs, err := s.ListPushSubscriptions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "p2", subs[0].P256dhKey)
	assert.Equal(t, "a2", subs[0].AuthKey)
	assert.Nil(t, subs[0].LastUsedAt)

	at := now()
	require.NoError(t, s.TouchPushSubscription(ctx, firstID, at))
	subs, err = s.ListPushSubscriptions(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, subs[0].LastUsedAt)
	assert.WithinDuration(t, at, *subs[0].LastUsedAt, time.Millisecond)

	second := &models.PushSubscription{ID: utils.NewID(), UserID: user.ID, Endpoint: "https://push.example.com/def",
		P256dhKey: "p", AuthKey: "a", CreatedAt: now()}
	require.NoError(t, s.UpsertPushSubscription(ctx, second))

	require.NoError(t, s.DeletePushSubscriptionByEndpoint(ctx, user.ID, "https://push.example.com/abc"))
	require.NoError(t, s.DeletePushSubscription(ctx, second.ID))
	subs, err = s.ListPushSubscriptions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
