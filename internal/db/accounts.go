package db

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"studyhub/internal/model"
	"studyhub/internal/pagination"
)

const accountColumns = `id, name, email, password_hash, role, faculty, department, year_of_study, bio,
  profile_picture, contribution_points, saved_resources, reset_token_hash, reset_expires_at, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Faculty,
		&a.Department,
		&a.YearOfStudy,
		&a.Bio,
		&a.ProfilePicture,
		&a.ContributionPoints,
		&a.SavedResources,
		&a.ResetTokenHash,
		&a.ResetExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func scanAccountRows(rows pgx.Rows) (model.Account, error) {
	return scanAccount(rows)
}

func (q *Queries) CreateAccount(ctx context.Context, a model.Account) error {
	_, err := q.db.Exec(ctx, `
    INSERT INTO accounts (id, name, email, password_hash, role, faculty, department, year_of_study, bio,
      profile_picture, contribution_points, saved_resources, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
  `, a.ID, a.Name, a.Email, a.PasswordHash, a.Role, a.Faculty, a.Department, a.YearOfStudy, a.Bio,
		a.ProfilePicture, a.ContributionPoints, nonNilStrings(a.SavedResources), a.CreatedAt, a.UpdatedAt)
	return err
}

func (q *Queries) GetAccountByID(ctx context.Context, id string) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetAccountForUpdate locks the row until the surrounding transaction ends.
func (q *Queries) GetAccountForUpdate(ctx context.Context, id string) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

func (q *Queries) GetAccountByResetToken(ctx context.Context, tokenHash string, now time.Time) (model.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `
    SELECT `+accountColumns+`
    FROM accounts
    WHERE reset_token_hash = $1 AND reset_expires_at > $2
  `, tokenHash, now))
}

func (q *Queries) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

func (q *Queries) UpdateProfile(ctx context.Context, a model.Account) error {
	_, err := q.db.Exec(ctx, `
    UPDATE accounts
    SET name = $2, faculty = $3, department = $4, year_of_study = $5, bio = $6, profile_picture = $7, updated_at = $8
    WHERE id = $1
  `, a.ID, a.Name, a.Faculty, a.Department, a.YearOfStudy, a.Bio, a.ProfilePicture, a.UpdatedAt)
	return err
}

func (q *Queries) UpdatePassword(ctx context.Context, accountID, passwordHash string, now time.Time) error {
	_, err := q.db.Exec(ctx, `
    UPDATE accounts
    SET password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = $3
    WHERE id = $1
  `, accountID, passwordHash, now)
	return err
}

func (q *Queries) SetResetToken(ctx context.Context, accountID string, tokenHash *string, expiresAt *time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE accounts SET reset_token_hash = $2, reset_expires_at = $3 WHERE id = $1`, accountID, tokenHash, expiresAt)
	return err
}

func (q *Queries) UpdateRole(ctx context.Context, accountID string, role model.Role, now time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1`, accountID, role, now)
	return err
}

func (q *Queries) SetSavedResources(ctx context.Context, accountID string, saved []string) error {
	_, err := q.db.Exec(ctx, `UPDATE accounts SET saved_resources = $2 WHERE id = $1`, accountID, nonNilStrings(saved))
	return err
}

func (q *Queries) AddContributionPoints(ctx context.Context, accountID string, points int) error {
	_, err := q.db.Exec(ctx, `UPDATE accounts SET contribution_points = contribution_points + $2 WHERE id = $1`, accountID, points)
	return err
}

// ListAdminIDs is evaluated per event; admin fan-out never caches it.
func (q *Queries) ListAdminIDs(ctx context.Context) ([]string, error) {
	return collect(ctx, q.db, `SELECT id FROM accounts WHERE role = $1 ORDER BY created_at`, []any{model.RoleAdmin}, func(rows pgx.Rows) (string, error) {
		var id string
		err := rows.Scan(&id)
		return id, err
	})
}

func (q *Queries) ListAccounts(ctx context.Context, f model.AccountFilter, page pagination.Request) (pagination.Page[model.Account], error) {
	where := sq.And{}
	if f.Role != "" {
		where = append(where, sq.Eq{"role": f.Role})
	}
	where = eqIfSet(where, "faculty", f.Faculty)
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		where = append(where, sq.Or{sq.ILike{"name": pattern}, sq.ILike{"email": pattern}})
	}
	return list(ctx, q.db, listing{
		from:    "accounts",
		columns: []string{accountColumns},
		where:   where,
		orderBy: []string{"created_at DESC"},
	}, page, scanAccountRows)
}
