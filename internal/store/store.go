// Package store is the append-only version history of regulatory sources,
// backed by PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/regwatch/internal/database"
	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
	"github.com/jonesrussell/north-cloud/regwatch/internal/fingerprint"
)

var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrVersionNotFound = errors.New("version not found")
	// ErrAlreadySeeded is returned by Seed when the source already has history.
	ErrAlreadySeeded = errors.New("source already seeded")
	// ErrNotSeeded is returned by RecordChange for a source without version 1.
	ErrNotSeeded = errors.New("source has no versions")
)

const sourceColumns = `id, authority, url, label, category, language, jurisdiction,
	current_version, last_fetched_at, last_changed_at, created_at`

const versionColumns = `id, source_id, version_no, content, fingerprint, verdict, captured_at`

// Store reads and appends regulation history. Every write runs in a single
// transaction holding the source row lock, so version numbers stay
// contiguous under concurrent writers.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New creates a Store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type versionRow struct {
	ID          int64     `db:"id"`
	SourceID    int64     `db:"source_id"`
	VersionNo   int       `db:"version_no"`
	Content     string    `db:"content"`
	Fingerprint string    `db:"fingerprint"`
	Verdict     []byte    `db:"verdict"`
	CapturedAt  time.Time `db:"captured_at"`
}

func (r versionRow) toDomain() (*domain.Version, error) {
	v := &domain.Version{
		ID:          r.ID,
		SourceID:    r.SourceID,
		VersionNo:   r.VersionNo,
		Content:     r.Content,
		Fingerprint: r.Fingerprint,
		CapturedAt:  r.CapturedAt,
	}
	if len(r.Verdict) > 0 {
		var verdict domain.ChangeVerdict
		if err := json.Unmarshal(r.Verdict, &verdict); err != nil {
			return nil, fmt.Errorf("decode verdict for version %d: %w", r.VersionNo, err)
		}
		v.Verdict = &verdict
	}
	return v, nil
}

// Current returns the source identified by (authority, url) and its current
// version. Both are nil when the source has never been seeded.
func (s *Store) Current(ctx context.Context, authority, url string) (*domain.Source, *domain.Version, error) {
	var src domain.Source
	query := `SELECT ` + sourceColumns + ` FROM regulation_sources WHERE authority = $1 AND url = $2`

	err := s.db.GetContext(ctx, &src, query, authority, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get source %s: %w", url, err)
	}
	if src.CurrentVersion == 0 {
		return &src, nil, nil
	}

	v, err := s.GetVersion(ctx, src.ID, src.CurrentVersion)
	if err != nil {
		return nil, nil, err
	}
	return &src, v, nil
}

// Seed upserts the source row and writes version 1 with no verdict. It fails
// with ErrAlreadySeeded when the source already has a version.
func (s *Store) Seed(ctx context.Context, src domain.Source, text string) (*domain.Version, error) {
	now := s.now()
	v := &domain.Version{
		VersionNo:   1,
		Content:     text,
		Fingerprint: fingerprint.Of(text),
		CapturedAt:  now,
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current int
		upsert := `
			INSERT INTO regulation_sources (authority, url, label, category, language, jurisdiction)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (authority, url) DO UPDATE
			SET label = EXCLUDED.label, category = EXCLUDED.category,
				language = EXCLUDED.language, jurisdiction = EXCLUDED.jurisdiction, updated_at = NOW()
			RETURNING id, current_version
		`
		row := tx.QueryRowxContext(ctx, upsert,
			src.Authority, src.URL, src.Label, src.Category, src.Language, src.Jurisdiction)
		if err := row.Scan(&v.SourceID, &current); err != nil {
			return fmt.Errorf("upsert source: %w", err)
		}
		if current > 0 {
			return ErrAlreadySeeded
		}

		if err := insertVersion(ctx, tx, v, nil); err != nil {
			return err
		}

		update := `
			UPDATE regulation_sources
			SET current_version = 1, last_fetched_at = $2, last_changed_at = $2, updated_at = $2
			WHERE id = $1
		`
		result, err := tx.ExecContext(ctx, update, v.SourceID, now)
		return database.ExecRequireRows(result, err, ErrSourceNotFound)
	})
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", src.URL, err)
	}
	return v, nil
}

// RecordUnchanged stamps the fetch time; no version is written.
func (s *Store) RecordUnchanged(ctx context.Context, sourceID int64) error {
	query := `UPDATE regulation_sources SET last_fetched_at = $2, updated_at = $2 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, sourceID, s.now())
	if err = database.ExecRequireRows(result, err, ErrSourceNotFound); err != nil {
		return fmt.Errorf("record unchanged %d: %w", sourceID, err)
	}
	return nil
}

// RecordChange appends the next version and advances the current pointer.
// The verdict is stored only when it is meaningful, and only then is the
// last-changed timestamp moved.
func (s *Store) RecordChange(
	ctx context.Context,
	sourceID int64,
	text, fp string,
	verdict *domain.ChangeVerdict,
) (*domain.Version, error) {
	now := s.now()
	v := &domain.Version{SourceID: sourceID, Content: text, Fingerprint: fp, CapturedAt: now}
	meaningful := verdict.Meaningful()
	if meaningful {
		v.Verdict = verdict
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current int
		lock := `SELECT current_version FROM regulation_sources WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, lock, sourceID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSourceNotFound
			}
			return fmt.Errorf("lock source: %w", err)
		}
		if current == 0 {
			return ErrNotSeeded
		}
		v.VersionNo = current + 1

		if err := insertVersion(ctx, tx, v, v.Verdict); err != nil {
			return err
		}

		update := `
			UPDATE regulation_sources
			SET current_version = $2, last_fetched_at = $3, updated_at = $3,
				last_changed_at = CASE WHEN $4::boolean THEN $3 ELSE last_changed_at END
			WHERE id = $1
		`
		result, err := tx.ExecContext(ctx, update, sourceID, v.VersionNo, now, meaningful)
		return database.ExecRequireRows(result, err, ErrSourceNotFound)
	})
	if err != nil {
		return nil, fmt.Errorf("record change %d: %w", sourceID, err)
	}
	return v, nil
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, v *domain.Version, verdict *domain.ChangeVerdict) error {
	var verdictArg any
	if verdict != nil {
		b, err := json.Marshal(verdict)
		if err != nil {
			return fmt.Errorf("encode verdict: %w", err)
		}
		// lib/pq sends []byte as bytea, which jsonb rejects.
		verdictArg = string(b)
	}

	query := `
		INSERT INTO regulation_versions (source_id, version_no, content, fingerprint, verdict, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := tx.QueryRowxContext(ctx, query,
		v.SourceID, v.VersionNo, v.Content, v.Fingerprint, verdictArg, v.CapturedAt,
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("insert version %d: %w", v.VersionNo, err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
