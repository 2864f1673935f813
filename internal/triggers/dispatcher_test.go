package triggers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/pipelines"
	"pipeline-hub/internal/push"
	"pipeline-hub/internal/storage/memory"
	"pipeline-hub/internal/storage/storagetest"
)

var fixedNow = time.Date(2026, 4, 2, 10, 15, 0, 0, time.UTC)

type sent struct {
	userID  string
	payload any
	ctxErr  error
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeNotifier) SendToUser(ctx context.Context, userID string, payload any) ([]push.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{userID: userID, payload: payload, ctxErr: ctx.Err()})
	if f.err != nil {
		return nil, f.err
	}
	return []push.DeliveryResult{{SubscriptionID: "s1", Success: true}}, nil
}

func (f *fakeNotifier) decoded(t *testing.T, i int) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.sent), i)

	var body []byte
	switch p := f.sent[i].payload.(type) {
	case []byte:
		body = p
	default:
		var err error
		body, err = json.Marshal(p)
		require.NoError(t, err)
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

type fixture struct {
	store      *memory.Store
	notifier   *fakeNotifier
	dispatcher *Dispatcher
	pipeline   *models.Pipeline
	webhook    *models.Webhook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	p := storagetest.SamplePipeline(t, "owner")
	require.NoError(t, store.CreatePipeline(ctx, p))
	w := &models.Webhook{
		ID: "w1", PipelineID: p.ID, UserID: "owner", Token: "tok-123",
		Method: "POST", IsActive: true, CreatedAt: fixedNow,
	}
	require.NoError(t, store.CreateWebhook(ctx, w))

	notifier := &fakeNotifier{}
	d := NewDispatcher(store, pipelines.NewService(store, nil), notifier)
	d.now = func() time.Time { return fixedNow }
	return &fixture{store: store, notifier: notifier, dispatcher: d, pipeline: p, webhook: w}
}

func request(body any) *models.RequestData {
	return &models.RequestData{
		Body:    body,
		Query:   map[string]any{"source": "crm"},
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

func TestHandleWebhook_CountsAndKeepsLastRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.dispatcher.HandleWebhook(ctx, "tok-123", "POST", request(map[string]any{"n": 1.0}))
	require.NoError(t, err)
	assert.Equal(t, &Result{Success: true, Triggered: true}, res)

	_, err = f.dispatcher.HandleWebhook(ctx, "tok-123", "post", request(map[string]any{"n": 2.0}))
	require.NoError(t, err)
	f.dispatcher.Wait()

	w, err := f.store.GetWebhook(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.TriggerCount)
	assert.Equal(t, map[string]any{"n": json.Number("2")}, w.LastRequest.Body)
	require.NotNil(t, w.LastTriggeredAt)
	assert.True(t, fixedNow.Equal(*w.LastTriggeredAt))

	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, "owner", f.notifier.sent[0].userID)

	payload := f.notifier.decoded(t, 0)
	assert.Equal(t, "webhook", payload["type"])
	assert.Equal(t, "w1", payload["webhookId"])
	assert.Equal(t, f.pipeline.ID, payload["pipelineId"])
	assert.Equal(t, "Sample", payload["pipelineName"])
	assert.Equal(t, fixedNow.Format(time.RFC3339Nano), payload["timestamp"])
	data := payload["data"].(map[string]any)
	assert.Equal(t, map[string]any{"n": 1.0}, data["body"])
	assert.Equal(t, map[string]any{"source": "crm"}, data["query"])
}

func TestHandleWebhook_MethodMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatcher.HandleWebhook(ctx, "tok-123", "GET", request("x"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeForbidden))
	f.dispatcher.Wait()

	w, err := f.store.GetWebhook(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.TriggerCount)
	assert.Nil(t, w.LastRequest)
	assert.Nil(t, w.LastTriggeredAt)
	assert.Empty(t, f.notifier.sent)
}

func TestHandleWebhook_Unresolvable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatcher.HandleWebhook(ctx, "nope", "POST", request(nil))
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	f.webhook.IsActive = false
	require.NoError(t, f.store.UpdateWebhook(ctx, f.webhook))
	_, err = f.dispatcher.HandleWebhook(ctx, "tok-123", "POST", request(nil))
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound), "inactive webhooks look missing")

	w, _ := f.store.GetWebhook(ctx, "w1")
	assert.Equal(t, int64(0), w.TriggerCount)
}

func TestHandleWebhook_DeliveryFailureIsHidden(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = stderrors.New("subscriptions unavailable")

	ctx, cancel := context.WithCancel(context.Background())
	res, err := f.dispatcher.HandleWebhook(ctx, "tok-123", "POST", request("x"))
	cancel()
	require.NoError(t, err)
	assert.True(t, res.Triggered)

	f.dispatcher.Wait()
	require.Len(t, f.notifier.sent, 1)
	assert.NoError(t, f.notifier.sent[0].ctxErr, "delivery is detached from the caller's cancellation")
}

// paddedBody returns a request whose webhook notification encodes to
// exactly size bytes.
func paddedBody(t *testing.T, f *fixture, size int) *models.RequestData {
	t.Helper()
	probe := request("")
	full := &Notification{
		Type:         TypeWebhook,
		WebhookID:    f.webhook.ID,
		PipelineID:   f.pipeline.ID,
		PipelineName: f.pipeline.Title,
		Data:         probe,
		Timestamp:    fixedNow.Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(full)
	require.NoError(t, err)
	probe.Body = strings.Repeat("a", size-len(raw))

	raw, err = json.Marshal(full)
	require.NoError(t, err)
	require.Len(t, raw, size)
	return probe
}

func TestHandleWebhook_SizeBoundary(t *testing.T) {
	tests := []struct {
		size     int
		wantType string
	}{
		{MaxPayloadBytes - 1, TypeWebhook},
		{MaxPayloadBytes, TypeWebhookLarge},
		{MaxPayloadBytes * 3, TypeWebhookLarge},
	}

	for _, tt := range tests {
		f := newFixture(t)
		req := paddedBody(t, f, tt.size)
		_, err := f.dispatcher.HandleWebhook(context.Background(), "tok-123", "POST", req)
		require.NoError(t, err)
		f.dispatcher.Wait()

		payload := f.notifier.decoded(t, 0)
		assert.Equal(t, tt.wantType, payload["type"], "size %d", tt.size)
		assert.Equal(t, "w1", payload["webhookId"])
		if tt.wantType == TypeWebhookLarge {
			assert.NotEmpty(t, payload["message"])
			assert.NotContains(t, payload, "data")
		}

		w, _ := f.store.GetWebhook(context.Background(), "w1")
		assert.Equal(t, req.Body, w.LastRequest.Body, "full request is stored either way")
	}
}

func TestEncodeWithinLimit(t *testing.T) {
	full := &Notification{Type: TypeWebhook, Data: strings.Repeat("x", 10)}
	body, large, err := encodeWithinLimit(full, webhookPointer("w1", ""))
	require.NoError(t, err)
	assert.False(t, large)
	assert.JSONEq(t, `{"type":"webhook","data":"xxxxxxxxxx"}`, string(body))

	full.Data = strings.Repeat("x", MaxPayloadBytes)
	body, large, err = encodeWithinLimit(full, webhookPointer("w1", ""))
	require.NoError(t, err)
	assert.True(t, large)
	assert.Less(t, len(body), MaxPayloadBytes)
	assert.Contains(t, string(body), "A pipeline received a request too large")

	_, _, err = encodeWithinLimit(&Notification{Data: make(chan int)}, webhookPointer("w1", ""))
	assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
}

func TestRunManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.dispatcher.RunManual(ctx, f.pipeline.ID, "owner", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	require.Len(t, res.Deliveries, 1)

	payload := f.notifier.decoded(t, 0)
	assert.Equal(t, "manual", payload["type"])
	assert.Equal(t, f.pipeline.ID, payload["pipelineId"])
	assert.Equal(t, map[string]any{"name": "Ada"}, payload["data"])

	_, err = f.dispatcher.RunManual(ctx, f.pipeline.ID, "intruder", nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeForbidden))

	_, err = f.dispatcher.RunManual(ctx, f.pipeline.ID, "owner", strings.Repeat("x", MaxPayloadBytes))
	require.NoError(t, err)
	assert.Equal(t, "manual_large", f.notifier.decoded(t, 1)["type"])
}
