package operations

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"

	"studyhub/internal/authz"
	"studyhub/internal/blob"
	"studyhub/internal/db"
	"studyhub/internal/logging"
	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

func (s *Service) ListResources(ctx context.Context, f model.ResourceFilter, page pagination.Request) (pagination.Page[model.Resource], error) {
	f.Status = model.StatusApproved
	result, err := s.store.ListResources(ctx, f, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}

func (s *Service) SearchResources(ctx context.Context, f model.ResourceFilter, page pagination.Request) (pagination.Page[model.Resource], error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.Search == "" {
		return pagination.Page[model.Resource]{}, Validation("Please provide a search query")
	}
	return s.ListResources(ctx, f, page)
}

func (s *Service) FilterOptions(ctx context.Context) (model.FilterOptions, error) {
	opts := model.FilterOptions{
		Types:     model.ResourceTypes,
		Levels:    model.Levels,
		Semesters: model.Semesters,
	}
	columns := []struct {
		name string
		dst  *[]string
	}{
		{"faculty", &opts.Faculties},
		{"department", &opts.Departments},
		{"course", &opts.Courses},
		{"academic_year", &opts.AcademicYears},
	}
	for _, c := range columns {
		values, err := s.store.DistinctResourceValues(ctx, c.name)
		if err != nil {
			return model.FilterOptions{}, Internal(err)
		}
		*c.dst = values
	}
	return opts, nil
}

// ResourcesByUser lists another account's uploads. Only the account itself and admins see
// uploads that are not approved yet.
func (s *Service) ResourcesByUser(ctx context.Context, viewer authz.Actor, userID string, page pagination.Request) (pagination.Page[model.Resource], error) {
	if _, err := s.store.GetAccountByID(ctx, userID); err != nil {
		return pagination.Page[model.Resource]{}, lookup(err, "User")
	}
	f := model.ResourceFilter{UploadedBy: userID}
	if !s.gate.CanMutate(viewer, authz.ResourceEntity(model.Resource{UploadedBy: userID}), authz.ActionViewPending) {
		f.Status = model.StatusApproved
	}
	result, err := s.store.ListResources(ctx, f, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}

func (s *Service) MyResources(ctx context.Context, actor authz.Actor, page pagination.Request) (pagination.Page[model.Resource], error) {
	result, err := s.store.ListResources(ctx, model.ResourceFilter{UploadedBy: actor.ID}, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}

func (s *Service) SavedResources(ctx context.Context, actor authz.Actor, page pagination.Request) (pagination.Page[model.Resource], error) {
	account, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return pagination.Page[model.Resource]{}, lookup(err, "User")
	}
	ids := account.SavedResources
	if ids == nil {
		ids = []string{}
	}
	result, err := s.store.ListResources(ctx, model.ResourceFilter{IDs: ids, Status: model.StatusApproved}, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}

// GetResource counts a view. A resource that is not approved is only shown to its uploader
// and to admins.
func (s *Service) GetResource(ctx context.Context, viewer authz.Actor, id string) (model.Resource, error) {
	resource, err := s.store.GetResource(ctx, id)
	if err != nil {
		return model.Resource{}, lookup(err, "Resource")
	}
	if !resource.Approved() && !s.gate.CanMutate(viewer, authz.ResourceEntity(resource), authz.ActionViewPending) {
		return model.Resource{}, Forbidden("This resource is not yet approved")
	}
	if err := s.store.IncrementResourceViews(ctx, id); err != nil {
		return model.Resource{}, Internal(err)
	}
	resource.Views++
	return resource, nil
}

func (s *Service) CreateResource(ctx context.Context, actor authz.Actor, in model.ResourceInput, up *Upload) (model.Resource, error) {
	if err := s.authorize(actor, authz.NewUpload, authz.ActionUpload, "Your role is not allowed to upload resources"); err != nil {
		return model.Resource{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Tags = model.NormalizeTags(in.Tags)
	if err := validate(in); err != nil {
		return model.Resource{}, err
	}
	if up == nil {
		return model.Resource{}, Validation("Please upload a file")
	}
	uploader, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return model.Resource{}, lookup(err, "User")
	}

	stored, err := s.saveUpload(blob.KindResource, *up)
	if err != nil {
		return model.Resource{}, err
	}
	now := s.now()
	resource := model.Resource{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Type:         in.Type,
		Faculty:      in.Faculty,
		Department:   in.Department,
		Course:       in.Course,
		Level:        in.Level,
		Semester:     in.Semester,
		AcademicYear: in.AcademicYear,
		Tags:         in.Tags,
		FilePath:     stored.Path,
		FileType:     fileType(stored),
		FileSize:     stored.Size,
		UploadedBy:   uploader.ID,
		Uploader:     &model.AccountRef{ID: uploader.ID, Name: uploader.Name, Role: uploader.Role, ProfilePicture: uploader.ProfilePicture},
		Status:       model.StatusPending,
		Ratings:      []model.Rating{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithTx(ctx, func(q *db.Queries) error {
		if err := q.CreateResource(ctx, resource); err != nil {
			return err
		}
		return q.AddContributionPoints(ctx, uploader.ID, UploadPoints)
	})
	if err != nil {
		s.discardBlob(ctx, stored.Path)
		return model.Resource{}, Internal(err)
	}

	s.notifyAdmins(actor.ID, model.NotifySystem, model.UploadPendingMessage(resource.Title, uploader.Name), model.ResourceTarget(resource.ID))
	return resource, nil
}

func fileType(stored blob.Stored) string {
	if stored.Ext == "" {
		return "other"
	}
	return stored.Ext
}

// UpdateResource applies the typed update and, when up is set, swaps the stored file.
func (s *Service) UpdateResource(ctx context.Context, actor authz.Actor, id string, in model.ResourceUpdate, up *Upload) (model.Resource, error) {
	if err := validate(in); err != nil {
		return model.Resource{}, err
	}
	resource, err := s.store.GetResource(ctx, id)
	if err != nil {
		return model.Resource{}, lookup(err, "Resource")
	}
	if err := s.authorize(actor, authz.ResourceEntity(resource), authz.ActionUpdate, "Not authorized to update this resource"); err != nil {
		return model.Resource{}, err
	}

	in.Apply(&resource)
	previousFile := ""
	if up != nil {
		stored, err := s.saveUpload(blob.KindResource, *up)
		if err != nil {
			return model.Resource{}, err
		}
		previousFile = resource.FilePath
		resource.FilePath = stored.Path
		resource.FileType = fileType(stored)
		resource.FileSize = stored.Size
	}
	resource.UpdatedAt = s.now()

	if err := s.store.UpdateResource(ctx, resource); err != nil {
		if previousFile != "" {
			s.discardBlob(ctx, resource.FilePath)
		}
		return model.Resource{}, Internal(err)
	}
	s.removeBlobs(previousFile)
	return resource, nil
}

func (s *Service) ReplaceResourceFile(ctx context.Context, actor authz.Actor, id string, up *Upload) (model.Resource, error) {
	if up == nil {
		return model.Resource{}, Validation("Please upload a file")
	}
	return s.UpdateResource(ctx, actor, id, model.ResourceUpdate{}, up)
}

// DeleteResource removes the row, then the notifications pointing at it, then the file.
// The steps are independent; a failure after the first is only logged.
func (s *Service) DeleteResource(ctx context.Context, actor authz.Actor, id string) error {
	resource, err := s.store.GetResource(ctx, id)
	if err != nil {
		return lookup(err, "Resource")
	}
	if err := s.authorize(actor, authz.ResourceEntity(resource), authz.ActionDelete, "Not authorized to delete this resource"); err != nil {
		return err
	}
	if err := s.store.DeleteResource(ctx, id); err != nil {
		return Internal(err)
	}
	if _, err := s.store.DeleteNotificationsByTarget(ctx, *model.ResourceTarget(id)); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("resource_id", id).Msg("delete resource notifications")
	}
	s.removeBlobs(resource.FilePath)
	return nil
}

func (s *Service) RateResource(ctx context.Context, actor authz.Actor, id string, in model.RatingInput) (model.Resource, error) {
	if actor.ID == "" {
		return model.Resource{}, Unauthenticated("Not authorized to access this route")
	}
	if err := validate(in); err != nil {
		return model.Resource{}, err
	}
	var resource model.Resource
	err := s.store.WithTx(ctx, func(q *db.Queries) error {
		var err error
		resource, err = q.GetResourceForUpdate(ctx, id)
		if err != nil {
			return lookup(err, "Resource")
		}
		if !resource.Approved() {
			return Forbidden("Cannot rate a resource that is not approved")
		}
		now := s.now()
		resource.ApplyRating(model.Rating{AccountID: actor.ID, Value: in.Rating, Comment: in.Comment, CreatedAt: now})
		resource.UpdatedAt = now
		return q.UpdateResourceRatings(ctx, resource)
	})
	if err != nil {
		return model.Resource{}, wrap(err)
	}
	s.notify(actor.ID, resource.UploadedBy, model.NotifyResourceRated, model.RatedMessage(resource.Title), model.ResourceTarget(resource.ID))
	return resource, nil
}

type Download struct {
	Resource model.Resource
	File     *os.File
}

// DownloadResource opens the stored file and counts the download. The caller closes File.
func (s *Service) DownloadResource(ctx context.Context, actor authz.Actor, id string) (Download, error) {
	resource, err := s.store.GetResource(ctx, id)
	if err != nil {
		return Download{}, lookup(err, "Resource")
	}
	if !resource.Approved() {
		return Download{}, Forbidden("This resource is not yet approved for download")
	}
	f, err := s.blobs.Open(resource.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return Download{}, NotFound("File not found")
	}
	if err != nil {
		return Download{}, Storage("Could not open file", err)
	}
	if err := s.store.IncrementResourceDownloads(ctx, id); err != nil {
		f.Close()
		return Download{}, Internal(err)
	}
	resource.Downloads++
	return Download{Resource: resource, File: f}, nil
}

// ToggleSave adds or removes the resource from the actor's saved set and reports whether it
// is saved afterwards.
func (s *Service) ToggleSave(ctx context.Context, actor authz.Actor, id string) (bool, error) {
	resource, err := s.store.GetResource(ctx, id)
	if err != nil {
		return false, lookup(err, "Resource")
	}
	var saved bool
	err = s.store.WithTx(ctx, func(q *db.Queries) error {
		account, err := q.GetAccountForUpdate(ctx, actor.ID)
		if err != nil {
			return lookup(err, "User")
		}
		saved = account.ToggleSaved(resource.ID)
		return q.SetSavedResources(ctx, account.ID, account.SavedResources)
	})
	if err != nil {
		return false, wrap(err)
	}
	return saved, nil
}
