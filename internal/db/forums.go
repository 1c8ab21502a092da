package db

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

const forumFrom = `forums f JOIN accounts u ON u.id = f.created_by`

const forumColumns = `f.id, f.title, f.description, f.category, f.faculty, f.department, f.course, f.created_by,
  f.participants, f.is_active, f.is_pinned, f.views, f.last_activity, f.created_at, f.updated_at,
  (SELECT COUNT(*) FROM posts p WHERE p.forum_id = f.id),
  u.name, u.role, u.profile_picture`

func scanForum(row pgx.Row) (model.Forum, error) {
	var f model.Forum
	creator := model.AccountRef{}
	err := row.Scan(
		&f.ID,
		&f.Title,
		&f.Description,
		&f.Category,
		&f.Faculty,
		&f.Department,
		&f.Course,
		&f.CreatedBy,
		&f.Participants,
		&f.IsActive,
		&f.IsPinned,
		&f.Views,
		&f.LastActivity,
		&f.CreatedAt,
		&f.UpdatedAt,
		&f.PostCount,
		&creator.Name,
		&creator.Role,
		&creator.ProfilePicture,
	)
	if err != nil {
		return f, err
	}
	creator.ID = f.CreatedBy
	f.Creator = &creator
	return f, nil
}

func scanForumRows(rows pgx.Rows) (model.Forum, error) {
	return scanForum(rows)
}

func (q *Queries) CreateForum(ctx context.Context, f model.Forum) error {
	_, err := q.db.Exec(ctx, `
    INSERT INTO forums (id, title, description, category, faculty, department, course, created_by, participants,
      is_active, is_pinned, last_activity, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
  `, f.ID, f.Title, f.Description, f.Category, f.Faculty, f.Department, f.Course, f.CreatedBy,
		nonNilStrings(f.Participants), f.IsActive, f.IsPinned, f.LastActivity, f.CreatedAt, f.UpdatedAt)
	return err
}

func (q *Queries) GetForum(ctx context.Context, id string) (model.Forum, error) {
	return scanForum(q.db.QueryRow(ctx, `SELECT `+forumColumns+` FROM `+forumFrom+` WHERE f.id = $1`, id))
}

func (q *Queries) GetForumForUpdate(ctx context.Context, id string) (model.Forum, error) {
	return scanForum(q.db.QueryRow(ctx, `SELECT `+forumColumns+` FROM `+forumFrom+` WHERE f.id = $1 FOR UPDATE OF f`, id))
}

func (q *Queries) UpdateForum(ctx context.Context, f model.Forum) error {
	_, err := q.db.Exec(ctx, `
    UPDATE forums
    SET title = $2, description = $3, category = $4, faculty = $5, department = $6, course = $7,
      is_active = $8, is_pinned = $9, updated_at = $10
    WHERE id = $1
  `, f.ID, f.Title, f.Description, f.Category, f.Faculty, f.Department, f.Course, f.IsActive, f.IsPinned, f.UpdatedAt)
	return err
}

// TouchForumActivity bumps lastActivity and stores the participant set after a new post.
func (q *Queries) TouchForumActivity(ctx context.Context, forumID string, participants []string, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE forums SET last_activity = $2, participants = $3 WHERE id = $1`, forumID, at, nonNilStrings(participants))
	return err
}

func (q *Queries) IncrementForumViews(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `UPDATE forums SET views = views + 1 WHERE id = $1`, id)
	return err
}

func (q *Queries) DeleteForum(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM forums WHERE id = $1`, id)
	return err
}

func forumOrder(sort string) []string {
	switch sort {
	case model.SortOldest:
		return []string{"f.created_at ASC"}
	case model.SortActive:
		return []string{"f.last_activity DESC", "f.created_at DESC"}
	default:
		return []string{"f.created_at DESC"}
	}
}

func (q *Queries) ListForums(ctx context.Context, f model.ForumFilter, page pagination.Request) (pagination.Page[model.Forum], error) {
	where := sq.And{}
	where = eqIfSet(where, "f.category", string(f.Category))
	where = eqIfSet(where, "f.faculty", f.Faculty)
	where = eqIfSet(where, "f.created_by", f.CreatedBy)
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		where = append(where, sq.Or{sq.ILike{"f.title": pattern}, sq.ILike{"f.description": pattern}})
	}
	return list(ctx, q.db, listing{
		from:    forumFrom,
		columns: []string{forumColumns},
		where:   where,
		orderBy: forumOrder(f.Sort),
		key:     "f.id",
	}, page, scanForumRows)
}
