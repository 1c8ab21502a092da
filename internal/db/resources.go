package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

const resourceFrom = `resources r JOIN accounts u ON u.id = r.uploaded_by`

const resourceColumns = `r.id, r.title, r.description, r.type, r.faculty, r.department, r.course, r.level, r.semester,
  r.academic_year, r.tags, r.file_path, r.file_type, r.file_size, r.uploaded_by, r.status, r.approved_by, r.approved_at,
  r.rejection_reason, r.views, r.downloads, r.ratings, r.average_rating, r.created_at, r.updated_at,
  u.name, u.role, u.profile_picture`

func scanResource(row pgx.Row) (model.Resource, error) {
	var r model.Resource
	uploader := model.AccountRef{}
	err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Description,
		&r.Type,
		&r.Faculty,
		&r.Department,
		&r.Course,
		&r.Level,
		&r.Semester,
		&r.AcademicYear,
		&r.Tags,
		&r.FilePath,
		&r.FileType,
		&r.FileSize,
		&r.UploadedBy,
		&r.Status,
		&r.ApprovedBy,
		&r.ApprovedAt,
		&r.RejectionReason,
		&r.Views,
		&r.Downloads,
		&r.Ratings,
		&r.AverageRating,
		&r.CreatedAt,
		&r.UpdatedAt,
		&uploader.Name,
		&uploader.Role,
		&uploader.ProfilePicture,
	)
	if err != nil {
		return r, err
	}
	uploader.ID = r.UploadedBy
	r.Uploader = &uploader
	if r.Ratings == nil {
		r.Ratings = []model.Rating{}
	}
	return r, nil
}

func scanResourceRows(rows pgx.Rows) (model.Resource, error) {
	return scanResource(rows)
}

func (q *Queries) CreateResource(ctx context.Context, r model.Resource) error {
	_, err := q.db.Exec(ctx, `
    INSERT INTO resources (id, title, description, type, faculty, department, course, level, semester, academic_year,
      tags, file_path, file_type, file_size, uploaded_by, status, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
  `, r.ID, r.Title, r.Description, r.Type, r.Faculty, r.Department, r.Course, r.Level, r.Semester, r.AcademicYear,
		nonNilStrings(r.Tags), r.FilePath, r.FileType, r.FileSize, r.UploadedBy, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (q *Queries) GetResource(ctx context.Context, id string) (model.Resource, error) {
	return scanResource(q.db.QueryRow(ctx, `SELECT `+resourceColumns+` FROM `+resourceFrom+` WHERE r.id = $1`, id))
}

func (q *Queries) GetResourceForUpdate(ctx context.Context, id string) (model.Resource, error) {
	return scanResource(q.db.QueryRow(ctx, `SELECT `+resourceColumns+` FROM `+resourceFrom+` WHERE r.id = $1 FOR UPDATE OF r`, id))
}

// UpdateResource writes the editable metadata and file reference.
func (q *Queries) UpdateResource(ctx context.Context, r model.Resource) error {
	_, err := q.db.Exec(ctx, `
    UPDATE resources
    SET title = $2, description = $3, type = $4, faculty = $5, department = $6, course = $7, level = $8,
      semester = $9, academic_year = $10, tags = $11, file_path = $12, file_type = $13, file_size = $14, updated_at = $15
    WHERE id = $1
  `, r.ID, r.Title, r.Description, r.Type, r.Faculty, r.Department, r.Course, r.Level, r.Semester, r.AcademicYear,
		nonNilStrings(r.Tags), r.FilePath, r.FileType, r.FileSize, r.UpdatedAt)
	return err
}

func (q *Queries) UpdateResourceReview(ctx context.Context, r model.Resource) error {
	_, err := q.db.Exec(ctx, `
    UPDATE resources
    SET status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5, updated_at = $6
    WHERE id = $1
  `, r.ID, r.Status, r.ApprovedBy, r.ApprovedAt, r.RejectionReason, r.UpdatedAt)
	return err
}

func (q *Queries) UpdateResourceRatings(ctx context.Context, r model.Resource) error {
	ratings := r.Ratings
	if ratings == nil {
		ratings = []model.Rating{}
	}
	_, err := q.db.Exec(ctx, `
    UPDATE resources SET ratings = $2, average_rating = $3, updated_at = $4 WHERE id = $1
  `, r.ID, ratings, r.AverageRating, r.UpdatedAt)
	return err
}

func (q *Queries) IncrementResourceViews(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `UPDATE resources SET views = views + 1 WHERE id = $1`, id)
	return err
}

func (q *Queries) IncrementResourceDownloads(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `UPDATE resources SET downloads = downloads + 1 WHERE id = $1`, id)
	return err
}

func (q *Queries) DeleteResource(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	return err
}

func resourceOrder(sort string) []string {
	switch sort {
	case model.SortOldest:
		return []string{"r.created_at ASC"}
	case model.SortPopular:
		return []string{"r.downloads DESC", "r.created_at DESC"}
	case model.SortRating:
		return []string{"r.average_rating DESC", "r.created_at DESC"}
	default:
		return []string{"r.created_at DESC"}
	}
}

func (q *Queries) ListResources(ctx context.Context, f model.ResourceFilter, page pagination.Request) (pagination.Page[model.Resource], error) {
	where := sq.And{}
	where = eqIfSet(where, "r.status", string(f.Status))
	where = eqIfSet(where, "r.type", string(f.Type))
	where = eqIfSet(where, "r.faculty", f.Faculty)
	where = eqIfSet(where, "r.department", f.Department)
	where = eqIfSet(where, "r.course", f.Course)
	where = eqIfSet(where, "r.level", f.Level)
	where = eqIfSet(where, "r.semester", f.Semester)
	where = eqIfSet(where, "r.academic_year", f.AcademicYear)
	where = eqIfSet(where, "r.uploaded_by", f.UploadedBy)
	if f.IDs != nil {
		where = append(where, sq.Eq{"r.id": f.IDs})
	}
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		where = append(where, sq.Or{
			sq.ILike{"r.title": pattern},
			sq.ILike{"r.description": pattern},
			sq.Expr("EXISTS (SELECT 1 FROM unnest(r.tags) AS tag WHERE tag ILIKE ?)", pattern),
		})
	}
	return list(ctx, q.db, listing{
		from:    resourceFrom,
		columns: []string{resourceColumns},
		where:   where,
		orderBy: resourceOrder(f.Sort),
		key:     "r.id",
	}, page, scanResourceRows)
}

// DistinctResourceValues returns the sorted non-empty values of an approved-resource column.
func (q *Queries) DistinctResourceValues(ctx context.Context, column string) ([]string, error) {
	switch column {
	case "faculty", "department", "course", "academic_year":
	default:
		return nil, fmt.Errorf("unsupported filter column %q", column)
	}
	query := `SELECT DISTINCT ` + column + ` FROM resources WHERE status = 'approved' AND ` + column + ` <> '' ORDER BY 1`
	return collect(ctx, q.db, query, nil, func(rows pgx.Rows) (string, error) {
		var v string
		err := rows.Scan(&v)
		return v, err
	})
}

func (q *Queries) RecentResources(ctx context.Context, limit int) ([]model.Resource, error) {
	return collect(ctx, q.db, `SELECT `+resourceColumns+` FROM `+resourceFrom+` ORDER BY r.created_at DESC LIMIT $1`, []any{limit}, scanResourceRows)
}

func (q *Queries) TopDownloadedResources(ctx context.Context, limit int) ([]model.Resource, error) {
	return collect(ctx, q.db, `SELECT `+resourceColumns+` FROM `+resourceFrom+` WHERE r.status = 'approved' ORDER BY r.downloads DESC, r.created_at DESC LIMIT $1`, []any{limit}, scanResourceRows)
}
