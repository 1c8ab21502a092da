package operations

import (
	"context"
	"strings"

	"studyhub/internal/authz"
	"studyhub/internal/db"
	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

func (s *Service) requireAdmin(actor authz.Actor) error {
	return s.authorize(actor, authz.Platform, authz.ActionViewStats, "Not authorized to access this route")
}

func (s *Service) Dashboard(ctx context.Context, actor authz.Actor) (model.Dashboard, error) {
	if err := s.requireAdmin(actor); err != nil {
		return model.Dashboard{}, err
	}
	d, err := s.store.Dashboard(ctx)
	if err != nil {
		return model.Dashboard{}, Internal(err)
	}
	return d, nil
}

func (s *Service) PendingResources(ctx context.Context, actor authz.Actor, page pagination.Request) (pagination.Page[model.Resource], error) {
	if err := s.requireAdmin(actor); err != nil {
		return pagination.Page[model.Resource]{}, err
	}
	f := model.ResourceFilter{Status: model.StatusPending, Sort: model.SortOldest}
	result, err := s.store.ListResources(ctx, f, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}

func (s *Service) ApproveResource(ctx context.Context, actor authz.Actor, id string) (model.Resource, error) {
	return s.review(ctx, actor, id, true, "")
}

func (s *Service) RejectResource(ctx context.Context, actor authz.Actor, id string, in model.ReviewInput) (model.Resource, error) {
	if err := validate(in); err != nil {
		return model.Resource{}, err
	}
	return s.review(ctx, actor, id, false, strings.TrimSpace(in.Reason))
}

// review moves a resource to approved or rejected, records the reviewer and notifies the
// uploader.
func (s *Service) review(ctx context.Context, actor authz.Actor, id string, approve bool, reason string) (model.Resource, error) {
	var resource model.Resource
	err := s.store.WithTx(ctx, func(q *db.Queries) error {
		var err error
		resource, err = q.GetResourceForUpdate(ctx, id)
		if err != nil {
			return lookup(err, "Resource")
		}
		if err := s.authorize(actor, authz.ResourceEntity(resource), authz.ActionApprove, "Not authorized to review resources"); err != nil {
			return err
		}
		now := s.now()
		reviewer := actor.ID
		resource.ApprovedBy = &reviewer
		resource.ApprovedAt = &now
		resource.UpdatedAt = now
		if approve {
			resource.Status = model.StatusApproved
			resource.RejectionReason = ""
		} else {
			resource.Status = model.StatusRejected
			resource.RejectionReason = reason
		}
		return q.UpdateResourceReview(ctx, resource)
	})
	if err != nil {
		return model.Resource{}, wrap(err)
	}

	kind := model.NotifyResourceApproved
	if !approve {
		kind = model.NotifyResourceRejected
	}
	s.notify(actor.ID, resource.UploadedBy, kind, model.ReviewMessage(resource.Title, approve, reason), model.ResourceTarget(resource.ID))
	return resource, nil
}

func (s *Service) UserStatistics(ctx context.Context, actor authz.Actor) (model.UserStats, error) {
	if err := s.requireAdmin(actor); err != nil {
		return model.UserStats{}, err
	}
	stats, err := s.store.UserStats(ctx, model.NewStatsWindow(s.now()))
	if err != nil {
		return model.UserStats{}, Internal(err)
	}
	return stats, nil
}

func (s *Service) ResourceStatistics(ctx context.Context, actor authz.Actor) (model.ResourceStats, error) {
	if err := s.requireAdmin(actor); err != nil {
		return model.ResourceStats{}, err
	}
	stats, err := s.store.ResourceStats(ctx, model.NewStatsWindow(s.now()))
	if err != nil {
		return model.ResourceStats{}, Internal(err)
	}
	return stats, nil
}

func (s *Service) ForumStatistics(ctx context.Context, actor authz.Actor) (model.ForumStats, error) {
	if err := s.requireAdmin(actor); err != nil {
		return model.ForumStats{}, err
	}
	stats, err := s.store.ForumStats(ctx, model.NewStatsWindow(s.now()))
	if err != nil {
		return model.ForumStats{}, Internal(err)
	}
	return stats, nil
}
