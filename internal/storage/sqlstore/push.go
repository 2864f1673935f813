package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pipeline-hub/internal/models"
)

type pushSubscriptionRow struct {
	ID         string       `db:"id"`
	UserID     string       `db:"user_id"`
	Endpoint   string       `db:"endpoint"`
	P256dhKey  string       `db:"p256dh_key"`
	AuthKey    string       `db:"auth_key"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	CreatedAt  time.Time    `db:"created_at"`
}

const pushSubscriptionColumns = `id, user_id, endpoint, p256dh_key, auth_key, last_used_at, created_at`

func (r pushSubscriptionRow) toModel() *models.PushSubscription {
	return &models.PushSubscription{
		ID:         r.ID,
		UserID:     r.UserID,
		Endpoint:   r.Endpoint,
		P256dhKey:  r.P256dhKey,
		AuthKey:    r.AuthKey,
		LastUsedAt: timePtr(r.LastUsedAt),
		CreatedAt:  r.CreatedAt,
	}
}

func (s *Store) UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	row := pushSubscriptionRow{
		ID:         sub.ID,
		UserID:     sub.UserID,
		Endpoint:   sub.Endpoint,
		P256dhKey:  sub.P256dhKey,
		AuthKey:    sub.AuthKey,
		LastUsedAt: nullTime(sub.LastUsedAt),
		CreatedAt:  sub.CreatedAt.UTC(),
	}

	query, args, err := s.db.BindNamed(`INSERT INTO push_subscriptions (`+pushSubscriptionColumns+`)
		VALUES (:id, :user_id, :endpoint, :p256dh_key, :auth_key, :last_used_at, :created_at)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET
			p256dh_key = excluded.p256dh_key,
			auth_key = excluded.auth_key
		RETURNING `+pushSubscriptionColumns, row)
	if err != nil {
		return fmt.Errorf("failed to bind push subscription: %w", err)
	}

	var stored pushSubscriptionRow
	if err := s.db.GetContext(ctx, &stored, query, args...); err != nil {
		return mapError(err, "failed to upsert push subscription")
	}
	*sub = *stored.toModel()
	return nil
}

func (s *Store) ListPushSubscriptions(ctx context.Context, userID string) ([]*models.PushSubscription, error) {
	var rows []pushSubscriptionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+pushSubscriptionColumns+
		` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}

	subs := make([]*models.PushSubscription, len(rows))
	for i, row := range rows {
		subs[i] = row.toModel()
	}
	return subs, nil
}

func (s *Store) DeletePushSubscription(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM push_subscriptions WHERE id = ?`), id)
	return mapError(err, "failed to delete push subscription")
}

func (s *Store) DeletePushSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`), userID, endpoint)
	return mapError(err, "failed to delete push subscription")
}

func (s *Store) TouchPushSubscription(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE push_subscriptions SET last_used_at = ? WHERE id = ?`), at.UTC(), id)
	return mapError(err, "failed to update push subscription")
}
