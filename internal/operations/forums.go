package operations

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"studyhub/internal/authz"
	"studyhub/internal/blob"
	"studyhub/internal/db"
	"studyhub/internal/logging"
	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

func (s *Service) CreateForum(ctx context.Context, actor authz.Actor, in model.ForumInput) (model.Forum, error) {
	if actor.ID == "" {
		return model.Forum{}, Unauthenticated("Not authorized to access this route")
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validate(in); err != nil {
		return model.Forum{}, err
	}
	creator, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return model.Forum{}, lookup(err, "User")
	}
	now := s.now()
	forum := model.Forum{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Faculty:      in.Faculty,
		Department:   in.Department,
		Course:       in.Course,
		CreatedBy:    creator.ID,
		Creator:      &model.AccountRef{ID: creator.ID, Name: creator.Name, Role: creator.Role, ProfilePicture: creator.ProfilePicture},
		Participants: []string{creator.ID},
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateForum(ctx, forum); err != nil {
		return model.Forum{}, Internal(err)
	}
	return forum, nil
}

func (s *Service) ListForums(ctx context.Context, f model.ForumFilter, page pagination.Request) (pagination.Page[model.Forum], error) {
	result, err := s.store.ListForums(ctx, f, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}

func (s *Service) MyForums(ctx context.Context, actor authz.Actor, page pagination.Request) (pagination.Page[model.Forum], error) {
	return s.ListForums(ctx, model.ForumFilter{CreatedBy: actor.ID}, page)
}

// GetForum counts a view.
func (s *Service) GetForum(ctx context.Context, id string) (model.Forum, error) {
	forum, err := s.store.GetForum(ctx, id)
	if err != nil {
		return model.Forum{}, lookup(err, "Forum")
	}
	if err := s.store.IncrementForumViews(ctx, id); err != nil {
		return model.Forum{}, Internal(err)
	}
	forum.Views++
	return forum, nil
}

func (s *Service) UpdateForum(ctx context.Context, actor authz.Actor, id string, in model.ForumUpdate) (model.Forum, error) {
	if err := validate(in); err != nil {
		return model.Forum{}, err
	}
	forum, err := s.store.GetForum(ctx, id)
	if err != nil {
		return model.Forum{}, lookup(err, "Forum")
	}
	if err := s.authorize(actor, authz.ForumEntity(forum), authz.ActionUpdate, "Not authorized to update this forum"); err != nil {
		return model.Forum{}, err
	}
	in.Apply(&forum)
	forum.UpdatedAt = s.now()
	if err := s.store.UpdateForum(ctx, forum); err != nil {
		return model.Forum{}, Internal(err)
	}
	return forum, nil
}

// DeleteForum removes the posts first, then the forum. The deletes are independent
// statements; attachment files go through the task runner.
func (s *Service) DeleteForum(ctx context.Context, actor authz.Actor, id string) error {
	forum, err := s.store.GetForum(ctx, id)
	if err != nil {
		return lookup(err, "Forum")
	}
	if err := s.authorize(actor, authz.ForumEntity(forum), authz.ActionDelete, "Not authorized to delete this forum"); err != nil {
		return err
	}
	attachments, err := s.store.ListForumAttachments(ctx, id)
	if err != nil {
		return Internal(err)
	}
	removed, err := s.store.DeletePostsByForum(ctx, id)
	if err != nil {
		return Internal(err)
	}
	if err := s.store.DeleteForum(ctx, id); err != nil {
		return Internal(err)
	}
	if _, err := s.store.DeleteNotificationsByTarget(ctx, *model.ForumTarget(id)); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("forum_id", id).Msg("delete forum notifications")
	}
	paths := make([]string, 0, len(attachments))
	for _, a := range attachments {
		paths = append(paths, a.Path)
	}
	s.removeBlobs(paths...)
	logging.Ctx(ctx).Info().Str("forum_id", id).Int64("posts", removed).Msg("forum deleted")
	return nil
}

func (s *Service) forum(ctx context.Context, id string) (model.Forum, error) {
	forum, err := s.store.GetForum(ctx, id)
	if err != nil {
		return model.Forum{}, lookup(err, "Forum")
	}
	return forum, nil
}

// CreatePost stores the attachments, appends the post, bumps the forum's activity and adds
// the author to its participants.
func (s *Service) CreatePost(ctx context.Context, actor authz.Actor, forumID string, in model.PostInput, uploads []Upload) (model.Post, error) {
	if actor.ID == "" {
		return model.Post{}, Unauthenticated("Not authorized to access this route")
	}
	if err := validate(in); err != nil {
		return model.Post{}, err
	}
	if len(uploads) > s.cfg.Uploads.MaxAttachments {
		return model.Post{}, Validation("A post can have at most " + strconv.Itoa(s.cfg.Uploads.MaxAttachments) + " attachments")
	}
	forum, err := s.forum(ctx, forumID)
	if err != nil {
		return model.Post{}, err
	}
	if !forum.IsActive {
		return model.Post{}, Forbidden("This forum is closed")
	}
	author, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return model.Post{}, lookup(err, "User")
	}

	attachments := make([]model.Attachment, 0, len(uploads))
	discard := func() {
		for _, a := range attachments {
			s.discardBlob(ctx, a.Path)
		}
	}
	for _, up := range uploads {
		stored, err := s.saveUpload(blob.KindAttachment, up)
		if err != nil {
			discard()
			return model.Post{}, err
		}
		attachments = append(attachments, model.Attachment{Name: stored.Name, Type: stored.MIME, Size: stored.Size, Path: stored.Path})
	}

	now := s.now()
	post := model.Post{
		ID:          uuid.NewString(),
		ForumID:     forum.ID,
		AuthorID:    author.ID,
		Author:      &model.AccountRef{ID: author.ID, Name: author.Name, Role: author.Role, ProfilePicture: author.ProfilePicture},
		Content:     in.Content,
		Attachments: attachments,
		Likes:       []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.WithTx(ctx, func(q *db.Queries) error {
		locked, err := q.GetForumForUpdate(ctx, forum.ID)
		if err != nil {
			return lookup(err, "Forum")
		}
		if err := q.CreatePost(ctx, post); err != nil {
			return err
		}
		locked.AddParticipant(author.ID)
		return q.TouchForumActivity(ctx, locked.ID, locked.Participants, now)
	})
	if err != nil {
		discard()
		return model.Post{}, wrap(err)
	}

	s.notify(actor.ID, forum.CreatedBy, model.NotifyNewForumPost, model.NewPostMessage(author.Name, forum.Title), model.ForumTarget(forum.ID))
	return post, nil
}

func (s *Service) ListPosts(ctx context.Context, forumID string, page pagination.Request) (pagination.Page[model.Post], error) {
	if _, err := s.forum(ctx, forumID); err != nil {
		return pagination.Page[model.Post]{}, err
	}
	result, err := s.store.ListPosts(ctx, forumID, page)
	if err != nil {
		return result, Internal(err)
	}
	return result, nil
}

func (s *Service) UpdatePost(ctx context.Context, actor authz.Actor, forumID, postID string, in model.PostUpdate) (model.Post, error) {
	if err := validate(in); err != nil {
		return model.Post{}, err
	}
	forum, err := s.forum(ctx, forumID)
	if err != nil {
		return model.Post{}, err
	}
	post, err := s.store.GetPost(ctx, forumID, postID)
	if err != nil {
		return model.Post{}, lookup(err, "Post")
	}
	if err := s.authorize(actor, authz.PostEntity(post, forum), authz.ActionUpdate, "Not authorized to update this post"); err != nil {
		return model.Post{}, err
	}
	in.Apply(&post)
	post.UpdatedAt = s.now()
	if err := s.store.UpdatePostContent(ctx, post); err != nil {
		return model.Post{}, Internal(err)
	}
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, actor authz.Actor, forumID, postID string) error {
	forum, err := s.forum(ctx, forumID)
	if err != nil {
		return err
	}
	post, err := s.store.GetPost(ctx, forumID, postID)
	if err != nil {
		return lookup(err, "Post")
	}
	if err := s.authorize(actor, authz.PostEntity(post, forum), authz.ActionDelete, "Not authorized to delete this post"); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, post.ID); err != nil {
		return Internal(err)
	}
	paths := make([]string, 0, len(post.Attachments))
	for _, a := range post.Attachments {
		paths = append(paths, a.Path)
	}
	s.removeBlobs(paths...)
	return nil
}

// ToggleLike flips the actor's like. Only a new like notifies the author.
func (s *Service) ToggleLike(ctx context.Context, actor authz.Actor, forumID, postID string) (model.Post, error) {
	if actor.ID == "" {
		return model.Post{}, Unauthenticated("Not authorized to access this route")
	}
	forum, err := s.forum(ctx, forumID)
	if err != nil {
		return model.Post{}, err
	}
	var (
		post  model.Post
		liked bool
	)
	err = s.store.WithTx(ctx, func(q *db.Queries) error {
		var err error
		post, err = q.GetPostForUpdate(ctx, forumID, postID)
		if err != nil {
			return lookup(err, "Post")
		}
		liked = post.ToggleLike(actor.ID)
		return q.SetPostLikes(ctx, post.ID, post.Likes)
	})
	if err != nil {
		return model.Post{}, wrap(err)
	}
	if liked {
		liker, err := s.store.GetAccountByID(ctx, actor.ID)
		if err != nil {
			return model.Post{}, lookup(err, "User")
		}
		s.notify(actor.ID, post.AuthorID, model.NotifyPostLike, model.LikeMessage(liker.Name, forum.Title), model.ForumTarget(forum.ID))
	}
	return post, nil
}

// ReportPost records one report per account and alerts every admin.
func (s *Service) ReportPost(ctx context.Context, actor authz.Actor, forumID, postID string, in model.ReportInput) error {
	if actor.ID == "" {
		return Unauthenticated("Not authorized to access this route")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validate(in); err != nil {
		return err
	}
	forum, err := s.forum(ctx, forumID)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(q *db.Queries) error {
		post, err := q.GetPostForUpdate(ctx, forumID, postID)
		if err != nil {
			return lookup(err, "Post")
		}
		if err := post.AddReport(model.Report{AccountID: actor.ID, Reason: in.Reason, CreatedAt: s.now()}); err != nil {
			return &Error{Kind: KindConflict, Message: "You have already reported this post", Err: err}
		}
		return q.SetPostReports(ctx, post.ID, post.Reports)
	})
	if err != nil {
		return wrap(err)
	}
	s.notifyAdmins(actor.ID, model.NotifyPostReport, model.ReportMessage(forum.Title), model.ForumTarget(forum.ID))
	return nil
}

// MarkAnswer toggles the post's answer flag. Setting it first clears every other answer in
// the forum within the same transaction.
func (s *Service) MarkAnswer(ctx context.Context, actor authz.Actor, forumID, postID string) (model.Post, error) {
	forum, err := s.forum(ctx, forumID)
	if err != nil {
		return model.Post{}, err
	}
	if err := s.authorize(actor, authz.PostEntity(model.Post{}, forum), authz.ActionMarkAnswer, "Only the forum creator can mark answers"); err != nil {
		return model.Post{}, err
	}
	var post model.Post
	err = s.store.WithTx(ctx, func(q *db.Queries) error {
		var err error
		if _, err = q.GetForumForUpdate(ctx, forumID); err != nil {
			return lookup(err, "Forum")
		}
		post, err = q.GetPostForUpdate(ctx, forumID, postID)
		if err != nil {
			return lookup(err, "Post")
		}
		post.UpdatedAt = s.now()
		if post.IsAnswer {
			post.IsAnswer = false
			return q.SetAnswer(ctx, post.ID, false, post.UpdatedAt)
		}
		if err := q.ClearAnswers(ctx, forumID, post.ID); err != nil {
			return err
		}
		post.IsAnswer = true
		return q.SetAnswer(ctx, post.ID, true, post.UpdatedAt)
	})
	if err != nil {
		return model.Post{}, wrap(err)
	}
	if post.IsAnswer {
		s.notify(actor.ID, post.AuthorID, model.NotifyPostMarkedAnswer, model.AnswerMessage(forum.Title), model.ForumTarget(forum.ID))
	}
	return post, nil
}
