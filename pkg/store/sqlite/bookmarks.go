package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/refreshd/pkg/refresh"
)

// ErrNotFound is returned when a bookmark id does not exist.
var ErrNotFound = errors.New("bookmark not found")

const recordColumns = `id, owner_id, url, title, description, logo,
	source_code_url, source_code_url_source, documentation_url, documentation_url_source,
	status, github_stars, github_archived, github_last_commit,
	consecutive_failure_count, last_refresh_at, jitter_fraction, created_at`

const refreshBase = `COALESCE(last_refresh_at, created_at)`

// ReadDue returns the bookmarks whose last refresh (or creation, when never
// refreshed) is at or before before, oldest first.
func (s *Store) ReadDue(ctx context.Context, before time.Time) ([]refresh.Record, error) {
	cutoff := formatTime(before)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM bookmarks WHERE `+refreshBase+` <= ? ORDER BY `+refreshBase+`, id`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("query due bookmarks: %w", err)
	}
	defer rows.Close()

	var recs []refresh.Record
	index := map[int64]int{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		index[rec.ID] = len(recs)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read due bookmarks: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	sub := `SELECT id FROM bookmarks WHERE ` + refreshBase + ` <= ?`
	if err := s.loadAssociations(ctx, "bookmark_languages", sub, cutoff, func(id int64, a refresh.Association) {
		if i, ok := index[id]; ok {
			recs[i].Languages = append(recs[i].Languages, a)
		}
	}); err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, "bookmark_licenses", sub, cutoff, func(id int64, a refresh.Association) {
		if i, ok := index[id]; ok {
			recs[i].Licenses = append(recs[i].Licenses, a)
		}
	}); err != nil {
		return nil, err
	}
	return recs, nil
}

// Get returns one bookmark with its associations.
func (s *Store) Get(ctx context.Context, id int64) (refresh.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM bookmarks WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return refresh.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return refresh.Record{}, err
	}

	sub := `SELECT ?`
	add := func(dst *[]refresh.Association) func(int64, refresh.Association) {
		return func(_ int64, a refresh.Association) { *dst = append(*dst, a) }
	}
	if err := s.loadAssociations(ctx, "bookmark_languages", sub, id, add(&rec.Languages)); err != nil {
		return refresh.Record{}, err
	}
	if err := s.loadAssociations(ctx, "bookmark_licenses", sub, id, add(&rec.Licenses)); err != nil {
		return refresh.Record{}, err
	}
	return rec, nil
}

func (s *Store) loadAssociations(ctx context.Context, table, idQuery string, arg any, add func(int64, refresh.Association)) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bookmark_id, name, position, source FROM `+table+
			` WHERE bookmark_id IN (`+idQuery+`) ORDER BY bookmark_id, position, name`, arg)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id     int64
			a      refresh.Association
			source string
		)
		if err := rows.Scan(&id, &a.Name, &a.Order, &source); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		a.Source = refresh.ParseSource(source)
		add(id, a)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (refresh.Record, error) {
	var (
		rec                     refresh.Record
		title, desc, logo       sql.NullString
		srcSource, docSource    string
		status                  string
		stars                   sql.NullInt64
		archived                sql.NullBool
		lastCommit, lastRefresh sql.NullString
		jitter                  sql.NullFloat64
		createdAt               string
	)
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.URL, &title, &desc, &logo,
		&rec.SourceCodeURL.Value, &srcSource, &rec.DocumentationURL.Value, &docSource,
		&status, &stars, &archived, &lastCommit,
		&rec.ConsecutiveFailureCount, &lastRefresh, &jitter, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan bookmark: %w", err)
	}

	rec.Title = nullString(title)
	rec.Description = nullString(desc)
	rec.Logo = nullString(logo)
	rec.SourceCodeURL.Source = refresh.ParseSource(srcSource)
	rec.DocumentationURL.Source = refresh.ParseSource(docSource)
	rec.Status = refresh.Status(status)
	if stars.Valid {
		v := int(stars.Int64)
		rec.GitHubStars = &v
	}
	if archived.Valid {
		rec.GitHubArchived = &archived.Bool
	}
	if jitter.Valid {
		rec.JitterFraction = &jitter.Float64
	}
	if rec.GitHubLastCommit, err = scanTime(lastCommit); err != nil {
		return rec, fmt.Errorf("bookmark %d github_last_commit: %w", rec.ID, err)
	}
	if rec.LastRefreshAt, err = scanTime(lastRefresh); err != nil {
		return rec, fmt.Errorf("bookmark %d last_refresh_at: %w", rec.ID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return rec, fmt.Errorf("bookmark %d created_at: %w", rec.ID, err)
	}
	return rec, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// Write applies patch to bookmark id in one transaction. updated_at is never
// touched.
func (s *Store) Write(ctx context.Context, id int64, patch refresh.Patch) error {
	sets, args := updateColumns(patch)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		res, err := tx.ExecContext(ctx,
			`UPDATE bookmarks SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
			append(args, id)...)
		if err != nil {
			return fmt.Errorf("update bookmark %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
	} else {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookmarks WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check bookmark %d: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
	}

	if patch.Languages != nil {
		if err := replaceAssociations(ctx, tx, "bookmark_languages", id, *patch.Languages); err != nil {
			return err
		}
	}
	if patch.Licenses != nil {
		if err := replaceAssociations(ctx, tx, "bookmark_licenses", id, *patch.Licenses); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bookmark %d: %w", id, err)
	}
	return nil
}

func updateColumns(p refresh.Patch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Logo != nil {
		set("logo", *p.Logo)
	}
	if p.SourceCodeURL != nil {
		set("source_code_url", p.SourceCodeURL.Value)
		set("source_code_url_source", p.SourceCodeURL.Source.String())
	}
	if p.DocumentationURL != nil {
		set("documentation_url", p.DocumentationURL.Value)
		set("documentation_url_source", p.DocumentationURL.Source.String())
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.GitHubStars != nil {
		set("github_stars", *p.GitHubStars)
	}
	if p.GitHubArchived != nil {
		set("github_archived", *p.GitHubArchived)
	}
	if p.GitHubLastCommit != nil {
		set("github_last_commit", formatTime(*p.GitHubLastCommit))
	}
	if p.ConsecutiveFailureCount != nil {
		set("consecutive_failure_count", *p.ConsecutiveFailureCount)
	}
	if p.LastRefreshAt != nil {
		set("last_refresh_at", formatTime(*p.LastRefreshAt))
	}
	return sets, args
}

func replaceAssociations(ctx context.Context, tx *sql.Tx, table string, id int64, as []refresh.Association) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE bookmark_id = ?`, id); err != nil {
		return fmt.Errorf("clear %s of %d: %w", table, id, err)
	}
	for _, a := range as {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (bookmark_id, name, position, source) VALUES (?, ?, ?, ?)`,
			id, a.Name, a.Order, a.Source.String()); err != nil {
			return fmt.Errorf("insert %s of %d: %w", table, id, err)
		}
	}
	return nil
}

// Insert adds a bookmark and returns its id. Bookmark CRUD belongs to the
// owning application; Insert exists for seeding and tests.
func (s *Store) Insert(ctx context.Context, rec refresh.Record) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = refresh.StatusActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	var stars any
	if rec.GitHubStars != nil {
		stars = *rec.GitHubStars
	}
	var archived any
	if rec.GitHubArchived != nil {
		archived = *rec.GitHubArchived
	}
	var jitter any
	if rec.JitterFraction != nil {
		jitter = *rec.JitterFraction
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookmarks (owner_id, url, title, description, logo,
			source_code_url, source_code_url_source, documentation_url, documentation_url_source,
			status, github_stars, github_archived, github_last_commit,
			consecutive_failure_count, last_refresh_at, jitter_fraction, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.URL, rec.Title, rec.Description, rec.Logo,
		rec.SourceCodeURL.Value, rec.SourceCodeURL.Source.String(),
		rec.DocumentationURL.Value, rec.DocumentationURL.Source.String(),
		string(rec.Status), stars, archived, nullTime(rec.GitHubLastCommit),
		rec.ConsecutiveFailureCount, nullTime(rec.LastRefreshAt), jitter,
		formatTime(rec.CreatedAt), formatTime(rec.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert bookmark: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert bookmark: %w", err)
	}

	if err := replaceAssociations(ctx, tx, "bookmark_languages", id, rec.Languages); err != nil {
		return 0, err
	}
	if err := replaceAssociations(ctx, tx, "bookmark_licenses", id, rec.Licenses); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bookmark: %w", err)
	}
	return id, nil
}

// UpdatedAt returns the user-edit marker of bookmark id.
func (s *Store) UpdatedAt(ctx context.Context, id int64) (time.Time, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM bookmarks WHERE id = ?`, id).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return time.Time{}, err
	}
	return parseTime(v)
}

var (
	_ refresh.Store   = (*Store)(nil)
	_ refresh.Catalog = (*Store)(nil)
)
