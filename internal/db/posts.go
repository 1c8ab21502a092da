package db

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

const postFrom = `posts p JOIN accounts u ON u.id = p.author_id`

const postColumns = `p.id, p.forum_id, p.author_id, p.content, p.attachments, p.is_answer, p.is_edited, p.likes,
  p.reports, p.created_at, p.updated_at, u.name, u.role, u.profile_picture`

func scanPost(row pgx.Row) (model.Post, error) {
	var p model.Post
	author := model.AccountRef{}
	err := row.Scan(
		&p.ID,
		&p.ForumID,
		&p.AuthorID,
		&p.Content,
		&p.Attachments,
		&p.IsAnswer,
		&p.IsEdited,
		&p.Likes,
		&p.Reports,
		&p.CreatedAt,
		&p.UpdatedAt,
		&author.Name,
		&author.Role,
		&author.ProfilePicture,
	)
	if err != nil {
		return p, err
	}
	author.ID = p.AuthorID
	p.Author = &author
	if p.Attachments == nil {
		p.Attachments = []model.Attachment{}
	}
	return p, nil
}

func scanPostRows(rows pgx.Rows) (model.Post, error) {
	return scanPost(rows)
}

func (q *Queries) CreatePost(ctx context.Context, p model.Post) error {
	attachments := p.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	_, err := q.db.Exec(ctx, `
    INSERT INTO posts (id, forum_id, author_id, content, attachments, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
  `, p.ID, p.ForumID, p.AuthorID, p.Content, attachments, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetPost only matches a post that belongs to forumID.
func (q *Queries) GetPost(ctx context.Context, forumID, postID string) (model.Post, error) {
	return scanPost(q.db.QueryRow(ctx, `SELECT `+postColumns+` FROM `+postFrom+` WHERE p.id = $1 AND p.forum_id = $2`, postID, forumID))
}

func (q *Queries) GetPostForUpdate(ctx context.Context, forumID, postID string) (model.Post, error) {
	return scanPost(q.db.QueryRow(ctx, `SELECT `+postColumns+` FROM `+postFrom+` WHERE p.id = $1 AND p.forum_id = $2 FOR UPDATE OF p`, postID, forumID))
}

func (q *Queries) UpdatePostContent(ctx context.Context, p model.Post) error {
	_, err := q.db.Exec(ctx, `UPDATE posts SET content = $2, is_edited = $3, updated_at = $4 WHERE id = $1`, p.ID, p.Content, p.IsEdited, p.UpdatedAt)
	return err
}

func (q *Queries) SetPostLikes(ctx context.Context, postID string, likes []string) error {
	_, err := q.db.Exec(ctx, `UPDATE posts SET likes = $2 WHERE id = $1`, postID, nonNilStrings(likes))
	return err
}

func (q *Queries) SetPostReports(ctx context.Context, postID string, reports []model.Report) error {
	if reports == nil {
		reports = []model.Report{}
	}
	_, err := q.db.Exec(ctx, `UPDATE posts SET reports = $2 WHERE id = $1`, postID, reports)
	return err
}

// ClearAnswers unmarks every answer in the forum except keepID.
func (q *Queries) ClearAnswers(ctx context.Context, forumID, keepID string) error {
	_, err := q.db.Exec(ctx, `UPDATE posts SET is_answer = FALSE WHERE forum_id = $1 AND id <> $2 AND is_answer`, forumID, keepID)
	return err
}

func (q *Queries) SetAnswer(ctx context.Context, postID string, isAnswer bool, now time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE posts SET is_answer = $2, updated_at = $3 WHERE id = $1`, postID, isAnswer, now)
	return err
}

func (q *Queries) DeletePost(ctx context.Context, postID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	return err
}

// ListForumAttachments returns every attachment stored by posts of the forum.
func (q *Queries) ListForumAttachments(ctx context.Context, forumID string) ([]model.Attachment, error) {
	rows, err := collect(ctx, q.db, `SELECT attachments FROM posts WHERE forum_id = $1`, []any{forumID}, func(rows pgx.Rows) ([]model.Attachment, error) {
		var attachments []model.Attachment
		err := rows.Scan(&attachments)
		return attachments, err
	})
	if err != nil {
		return nil, err
	}
	var out []model.Attachment
	for _, attachments := range rows {
		out = append(out, attachments...)
	}
	return out, nil
}

func (q *Queries) DeletePostsByForum(ctx context.Context, forumID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM posts WHERE forum_id = $1`, forumID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListPosts orders accepted answers first, then newest first.
func (q *Queries) ListPosts(ctx context.Context, forumID string, page pagination.Request) (pagination.Page[model.Post], error) {
	return list(ctx, q.db, listing{
		from:    postFrom,
		columns: []string{postColumns},
		where:   sq.And{sq.Eq{"p.forum_id": forumID}},
		orderBy: []string{"p.is_answer DESC", "p.created_at DESC"},
		key:     "p.id",
	}, page, scanPostRows)
}
