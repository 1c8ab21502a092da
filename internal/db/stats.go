package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"studyhub/internal/model"
)

func scanCount(rows pgx.Rows) (model.Count, error) {
	var c model.Count
	err := rows.Scan(&c.Key, &c.Count)
	return c, err
}

func (q *Queries) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (q *Queries) groupCount(ctx context.Context, query string, args ...any) ([]model.Count, error) {
	return collect(ctx, q.db, query, args, scanCount)
}

func (q *Queries) Dashboard(ctx context.Context) (model.Dashboard, error) {
	var d model.Dashboard
	err := q.db.QueryRow(ctx, `
    SELECT
      (SELECT COUNT(*) FROM accounts),
      (SELECT COUNT(*) FROM resources),
      (SELECT COUNT(*) FROM resources WHERE status = 'pending'),
      (SELECT COUNT(*) FROM forums),
      (SELECT COUNT(*) FROM posts)
  `).Scan(&d.Users, &d.Resources, &d.PendingReviews, &d.Forums, &d.Posts)
	if err != nil {
		return d, err
	}
	d.RecentUsers, err = collect(ctx, q.db, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC LIMIT 5`, nil, scanAccountRows)
	if err != nil {
		return d, err
	}
	d.RecentResources, err = q.RecentResources(ctx, 5)
	return d, err
}

func (q *Queries) UserStats(ctx context.Context, window model.StatsWindow) (model.UserStats, error) {
	var (
		s   model.UserStats
		err error
	)
	if s.Total, err = q.count(ctx, `SELECT COUNT(*) FROM accounts`); err != nil {
		return s, err
	}
	if s.ByRole, err = q.groupCount(ctx, `SELECT role, COUNT(*) FROM accounts GROUP BY role ORDER BY COUNT(*) DESC, role`); err != nil {
		return s, err
	}
	if s.ByFaculty, err = q.groupCount(ctx, `SELECT faculty, COUNT(*) FROM accounts GROUP BY faculty ORDER BY COUNT(*) DESC, faculty`); err != nil {
		return s, err
	}
	if s.NewLastMonth, err = q.count(ctx, `SELECT COUNT(*) FROM accounts WHERE created_at >= $1`, window.MonthAgo); err != nil {
		return s, err
	}
	s.TopContributors, err = collect(ctx, q.db, `
    SELECT a.id, a.name, a.role, a.profile_picture, a.contribution_points,
      (SELECT COUNT(*) FROM resources r WHERE r.uploaded_by = a.id)
    FROM accounts a
    ORDER BY a.contribution_points DESC, a.created_at
    LIMIT 10
  `, nil, func(rows pgx.Rows) (model.Contributor, error) {
		var c model.Contributor
		err := rows.Scan(&c.ID, &c.Name, &c.Role, &c.ProfilePicture, &c.ContributionPoints, &c.Resources)
		return c, err
	})
	return s, err
}

func (q *Queries) ResourceStats(ctx context.Context, window model.StatsWindow) (model.ResourceStats, error) {
	var (
		s   model.ResourceStats
		err error
	)
	err = q.db.QueryRow(ctx, `
    SELECT COUNT(*), COALESCE(SUM(downloads), 0), COALESCE(SUM(views), 0),
      COUNT(*) FILTER (WHERE created_at >= $1)
    FROM resources
  `, window.MonthAgo).Scan(&s.Total, &s.TotalDownloads, &s.TotalViews, &s.NewLastMonth)
	if err != nil {
		return s, err
	}
	if s.ByStatus, err = q.groupCount(ctx, `SELECT status, COUNT(*) FROM resources GROUP BY status ORDER BY status`); err != nil {
		return s, err
	}
	if s.ByType, err = q.groupCount(ctx, `SELECT type, COUNT(*) FROM resources GROUP BY type ORDER BY COUNT(*) DESC, type`); err != nil {
		return s, err
	}
	if s.ByFaculty, err = q.groupCount(ctx, `SELECT faculty, COUNT(*) FROM resources GROUP BY faculty ORDER BY COUNT(*) DESC, faculty`); err != nil {
		return s, err
	}
	s.TopDownloaded, err = q.TopDownloadedResources(ctx, 5)
	return s, err
}

func (q *Queries) ForumStats(ctx context.Context, window model.StatsWindow) (model.ForumStats, error) {
	var s model.ForumStats
	err := q.db.QueryRow(ctx, `
    SELECT
      (SELECT COUNT(*) FROM forums),
      (SELECT COUNT(*) FROM forums WHERE is_active),
      (SELECT COUNT(*) FROM posts),
      (SELECT COUNT(*) FROM posts WHERE created_at >= $1)
  `, window.WeekAgo).Scan(&s.TotalForums, &s.ActiveForums, &s.TotalPosts, &s.PostsLastWeek)
	if err != nil {
		return s, err
	}
	s.MostActiveForums, err = collect(ctx, q.db, `
    SELECT f.id, f.title, COUNT(p.id) AS post_count
    FROM forums f
    LEFT JOIN posts p ON p.forum_id = f.id
    GROUP BY f.id, f.title
    ORDER BY post_count DESC, f.title
    LIMIT 5
  `, nil, func(rows pgx.Rows) (model.ForumActivity, error) {
		var a model.ForumActivity
		err := rows.Scan(&a.ID, &a.Title, &a.PostCount)
		return a, err
	})
	return s, err
}
