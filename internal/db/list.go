package db

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"studyhub/internal/pagination"
)

// listing describes one filtered, ordered listing. Every paginated endpoint goes through list.
type listing struct {
	from    string
	columns []string
	where   sq.And
	orderBy []string
	key     string
}

// order ends on the unique key column, so rows that tie on every other column keep one
// position and pages never overlap.
func (l listing) order() []string {
	key := l.key
	if key == "" {
		key = "id"
	}
	return append(append(make([]string, 0, len(l.orderBy)+1), l.orderBy...), key+" DESC")
}

func list[T any](ctx context.Context, db DBTX, l listing, page pagination.Request, scan func(pgx.Rows) (T, error)) (pagination.Page[T], error) {
	page = page.Normalize()

	countSQL, countArgs, err := psql.Select("COUNT(*)").From(l.from).Where(l.where).ToSql()
	if err != nil {
		return pagination.Page[T]{}, err
	}
	var total int
	if err := db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return pagination.Page[T]{}, err
	}

	query, args, err := psql.Select(l.columns...).
		From(l.from).
		Where(l.where).
		OrderBy(l.order()...).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return pagination.Page[T]{}, err
	}
	items, err := collect(ctx, db, query, args, scan)
	if err != nil {
		return pagination.Page[T]{}, err
	}
	return pagination.NewPage(page, items, total), nil
}

func collect[T any](ctx context.Context, db DBTX, query string, args []any, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// containsPattern builds an ILIKE pattern matching term anywhere, with wildcards escaped.
func containsPattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(term)) + "%"
}

func eqIfSet(where sq.And, column, value string) sq.And {
	if value == "" {
		return where
	}
	return append(where, sq.Eq{column: value})
}
