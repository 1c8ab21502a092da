package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

const notificationColumns = `id, recipient_id, type, message, target_kind, target_id, read, created_at`

func scanNotification(row pgx.Row) (model.Notification, error) {
	var (
		n          model.Notification
		targetKind *string
		targetID   *string
	)
	err := row.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Message, &targetKind, &targetID, &n.Read, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	if targetKind != nil && targetID != nil {
		n.Target = &model.Target{Kind: model.TargetKind(*targetKind), ID: *targetID}
	}
	return n, nil
}

func scanNotificationRows(rows pgx.Rows) (model.Notification, error) {
	return scanNotification(rows)
}

func (q *Queries) CreateNotification(ctx context.Context, n model.Notification) error {
	var targetKind, targetID *string
	if n.Target != nil {
		kind := string(n.Target.Kind)
		targetKind, targetID = &kind, &n.Target.ID
	}
	_, err := q.db.Exec(ctx, `
    INSERT INTO notifications (id, recipient_id, type, message, target_kind, target_id, read, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
  `, n.ID, n.RecipientID, n.Type, n.Message, targetKind, targetID, n.CreatedAt)
	return err
}

func (q *Queries) GetNotification(ctx context.Context, id string) (model.Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
}

func (q *Queries) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}

func (q *Queries) DeleteNotificationsByTarget(ctx context.Context, target model.Target) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM notifications WHERE target_kind = $1 AND target_id = $2`, string(target.Kind), target.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT read`, recipientID).Scan(&count)
	return count, err
}

func (q *Queries) ListNotifications(ctx context.Context, recipientID string, page pagination.Request) (pagination.Page[model.Notification], error) {
	return list(ctx, q.db, listing{
		from:    "notifications",
		columns: []string{notificationColumns},
		where:   sq.And{sq.Eq{"recipient_id": recipientID}},
		orderBy: []string{"created_at DESC"},
	}, page, scanNotificationRows)
}
