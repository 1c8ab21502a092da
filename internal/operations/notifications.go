package operations

import (
	"context"

	"studyhub/internal/authz"
	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

type Mailbox struct {
	pagination.Page[model.Notification]
	Unread int
}

func (s *Service) ListNotifications(ctx context.Context, actor authz.Actor, page pagination.Request) (Mailbox, error) {
	result, err := s.store.ListNotifications(ctx, actor.ID, page)
	if err != nil {
		return Mailbox{}, Internal(err)
	}
	unread, err := s.store.CountUnreadNotifications(ctx, actor.ID)
	if err != nil {
		return Mailbox{}, Internal(err)
	}
	return Mailbox{Page: result, Unread: unread}, nil
}

// MarkNotificationRead is idempotent; only the recipient may call it.
func (s *Service) MarkNotificationRead(ctx context.Context, actor authz.Actor, id string) (model.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return model.Notification{}, lookup(err, "Notification")
	}
	if err := s.authorize(actor, authz.NotificationEntity(n), authz.ActionMarkRead, "Not authorized to access this notification"); err != nil {
		return model.Notification{}, err
	}
	if !n.Read {
		if err := s.store.MarkNotificationRead(ctx, id); err != nil {
			return model.Notification{}, Internal(err)
		}
		n.Read = true
	}
	return n, nil
}
