package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Project is a row of the projects table.
type Project struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Namespace string    `db:"namespace"`
	Archived  bool      `db:"archived"`
	CreatedAt time.Time `db:"created_at"`
}

// MergeRequest is a row of the merge_requests table.
type MergeRequest struct {
	ID           int64     `db:"id"`
	ProjectID    int64     `db:"project_id"`
	AuthorID     *int64    `db:"author_id"`
	Title        string    `db:"title"`
	StateID      int64     `db:"state_id"`
	TimeEstimate *int64    `db:"time_estimate"`
	CreatedAt    time.Time `db:"created_at"`
}

// MergeRequestMetrics is a row of the merge_request_metrics table.
type MergeRequestMetrics struct {
	MergeRequestID int64      `db:"merge_request_id"`
	FirstCommentAt *time.Time `db:"first_comment_at"`
	MergedAt       *time.Time `db:"merged_at"`
}

// Fixture is a set of rows inserted together.
type Fixture struct {
	Projects      []Project
	MergeRequests []MergeRequest
	Metrics       []MergeRequestMetrics
}

// timestampLayout is how timestamps are written so SQLite date functions and
// text comparisons see a canonical form.
const timestampLayout = "2006-01-02 15:04:05"

// Insert writes the fixture in one transaction.
func (f Fixture) Insert(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range f.Projects {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO projects (id, name, namespace, archived, created_at) VALUES (?, ?, ?, ?, ?)`),
			p.ID, p.Name, p.Namespace, p.Archived, stamp(p.CreatedAt)); err != nil {
			return fmt.Errorf("insert project %d: %w", p.ID, err)
		}
	}
	for _, mr := range f.MergeRequests {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO merge_requests (id, project_id, author_id, title, state_id, time_estimate, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			mr.ID, mr.ProjectID, mr.AuthorID, mr.Title, mr.StateID, mr.TimeEstimate, stamp(mr.CreatedAt)); err != nil {
			return fmt.Errorf("insert merge request %d: %w", mr.ID, err)
		}
	}
	for _, m := range f.Metrics {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO merge_request_metrics (merge_request_id, first_comment_at, merged_at) VALUES (?, ?, ?)`),
			m.MergeRequestID, stampPtr(m.FirstCommentAt), stampPtr(m.MergedAt)); err != nil {
			return fmt.Errorf("insert metrics for merge request %d: %w", m.MergeRequestID, err)
		}
	}
	return tx.Commit()
}

func stamp(t time.Time) string { return t.UTC().Format(timestampLayout) }

func stampPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return stamp(*t)
}

// Int64 returns a pointer to v, for nullable fixture columns.
func Int64(v int64) *int64 { return &v }

// Time returns a pointer to t, for nullable fixture columns.
func Time(t time.Time) *time.Time { return &t }

// DemoFixture is the data set `aggq migrate --seed` loads: three projects and
// a few months of merge requests in the opened (1), closed (2) and merged (3)
// states.
func DemoFixture() Fixture {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 9, 30, 0, 0, time.UTC) }
	f := Fixture{
		Projects: []Project{
			{ID: 1, Name: "api", Namespace: "platform", CreatedAt: day(time.January, 2)},
			{ID: 2, Name: "web", Namespace: "platform", CreatedAt: day(time.January, 2)},
			{ID: 3, Name: "docs", Namespace: "community", Archived: true, CreatedAt: day(time.January, 3)},
		},
	}
	type mr struct {
		project, author, state int64
		estimate               *int64
		created                time.Time
		merged                 *time.Time
	}
	rows := []mr{
		{1, 10, 1, Int64(3600), day(time.January, 8), nil},
		{1, 11, 3, Int64(7200), day(time.January, 15), Time(day(time.January, 17))},
		{1, 10, 3, nil, day(time.February, 5), Time(day(time.February, 6))},
		{1, 12, 2, Int64(1800), day(time.February, 19), nil},
		{1, 11, 1, Int64(5400), day(time.March, 4), nil},
		{2, 12, 3, Int64(3600), day(time.January, 22), Time(day(time.January, 29))},
		{2, 13, 1, nil, day(time.February, 12), nil},
		{2, 13, 3, Int64(900), day(time.March, 11), Time(day(time.March, 12))},
		{2, 10, 2, Int64(2700), day(time.March, 18), nil},
		{3, 14, 3, nil, day(time.January, 9), Time(day(time.January, 10))},
		{3, 14, 1, Int64(600), day(time.March, 25), nil},
	}
	for i, r := range rows {
		id := int64(i + 1)
		f.MergeRequests = append(f.MergeRequests, MergeRequest{
			ID:           id,
			ProjectID:    r.project,
			AuthorID:     Int64(r.author),
			Title:        fmt.Sprintf("Merge request %d", id),
			StateID:      r.state,
			TimeEstimate: r.estimate,
			CreatedAt:    r.created,
		})
		f.Metrics = append(f.Metrics, MergeRequestMetrics{MergeRequestID: id, MergedAt: r.merged})
	}
	return f
}

// SeedDemo inserts DemoFixture.
func SeedDemo(ctx context.Context, db *sqlx.DB) error {
	return DemoFixture().Insert(ctx, db)
}
