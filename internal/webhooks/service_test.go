package webhooks

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/pipelines"
	"pipeline-hub/internal/storage/memory"
	"pipeline-hub/internal/storage/storagetest"
)

func setup(t *testing.T) (*Service, *memory.Store, *models.Pipeline) {
	t.Helper()
	store := memory.New()
	p := storagetest.SamplePipeline(t, "u1")
	require.NoError(t, store.CreatePipeline(context.Background(), p))

	svc := NewService(store, pipelines.NewService(store, nil), "https://hub.example.com/")
	return svc, store, p
}

func TestCreate(t *testing.T) {
	svc, _, p := setup(t)
	ctx := context.Background()

	view, err := svc.Create(ctx, p.ID, "u1", &CreateRequest{Method: "put"})
	require.NoError(t, err)
	assert.Equal(t, "PUT", view.Method)
	assert.True(t, view.IsActive)
	assert.Equal(t, p.ID, view.PipelineID)
	assert.Equal(t, "https://hub.example.com/webhook/"+view.Token, view.URL)

	raw, err := base64.RawURLEncoding.DecodeString(view.Token)
	require.NoError(t, err)
	assert.Len(t, raw, 24)

	defaulted, err := svc.Create(ctx, p.ID, "u1", &CreateRequest{})
	require.NoError(t, err)
	assert.Equal(t, "POST", defaulted.Method)
	assert.NotEqual(t, view.Token, defaulted.Token)

	t.Run("invalid method", func(t *testing.T) {
		_, err := svc.Create(ctx, p.ID, "u1", &CreateRequest{Method: "TRACE"})
		require.Error(t, err)
		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, []string{"method must be one of: GET, POST, PUT, PATCH, DELETE"}, appErr.Details())
	})

	t.Run("foreign pipeline", func(t *testing.T) {
		_, err := svc.Create(ctx, p.ID, "intruder", &CreateRequest{})
		assert.True(t, errors.IsType(err, errors.ErrTypeForbidden))
	})

	t.Run("missing pipeline", func(t *testing.T) {
		_, err := svc.Create(ctx, "missing", "u1", &CreateRequest{})
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	list, err := svc.List(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, v := range list {
		assert.True(t, strings.HasPrefix(v.URL, "https://hub.example.com/webhook/"))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc, store, p := setup(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, p.ID, "u1", &CreateRequest{})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(ctx, view.ID, "u1", &UpdateRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "POST", updated.Method)

	method := "get"
	updated, err = svc.Update(ctx, view.ID, "u1", &UpdateRequest{Method: &method})
	require.NoError(t, err)
	assert.Equal(t, "GET", updated.Method)
	assert.False(t, updated.IsActive)

	_, err = svc.Update(ctx, view.ID, "intruder", &UpdateRequest{IsActive: &inactive})
	assert.True(t, errors.IsType(err, errors.ErrTypeForbidden))

	assert.True(t, errors.IsType(svc.Delete(ctx, view.ID, "intruder"), errors.ErrTypeForbidden))
	require.NoError(t, svc.Delete(ctx, view.ID, "u1"))
	gone, err := store.GetWebhook(ctx, view.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.True(t, errors.IsType(svc.Delete(ctx, view.ID, "u1"), errors.ErrTypeNotFound))
}

func TestLastRequest(t *testing.T) {
	svc, store, p := setup(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, p.ID, "u1", &CreateRequest{})
	require.NoError(t, err)

	_, err = svc.LastRequest(ctx, view.ID, "u1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound), "no request recorded yet")

	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	_, err = store.RecordWebhookRequest(ctx, view.ID, &models.RequestData{
		Body:    map[string]any{"lead": "ada"},
		Query:   map[string]any{"src": "ad"},
		Headers: map[string]string{"Content-Type": "application/json"},
	}, at)
	require.NoError(t, err)

	last, err := svc.LastRequest(ctx, view.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), last.TriggerCount)
	assert.Equal(t, map[string]any{"lead": "ada"}, last.Request.Body)
	require.NotNil(t, last.LastTriggeredAt)
	assert.True(t, at.Equal(*last.LastTriggeredAt))

	_, err = svc.LastRequest(ctx, view.ID, "intruder")
	assert.True(t, errors.IsType(err, errors.ErrTypeForbidden))
}
