package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/regwatch/internal/domain"
)

// ListSources returns every stored source ordered by authority and label.
func (s *Store) ListSources(ctx context.Context) ([]domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM regulation_sources ORDER BY authority, label, id`

	sources := []domain.Source{}
	if err := s.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// GetSource returns one source by id.
func (s *Store) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM regulation_sources WHERE id = $1`

	var src domain.Source
	err := s.db.GetContext(ctx, &src, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source %d: %w", id, err)
	}
	return &src, nil
}

// ListVersions returns a source's history, newest first.
func (s *Store) ListVersions(ctx context.Context, sourceID int64) ([]domain.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM regulation_versions WHERE source_id = $1 ORDER BY version_no DESC`

	var rows []versionRow
	if err := s.db.SelectContext(ctx, &rows, query, sourceID); err != nil {
		return nil, fmt.Errorf("list versions %d: %w", sourceID, err)
	}

	versions := make([]domain.Version, 0, len(rows))
	for _, r := range rows {
		v, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, nil
}

// GetVersion returns version n of a source.
func (s *Store) GetVersion(ctx context.Context, sourceID int64, n int) (*domain.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM regulation_versions WHERE source_id = $1 AND version_no = $2`

	var row versionRow
	err := s.db.GetContext(ctx, &row, query, sourceID, n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version %d/%d: %w", sourceID, n, err)
	}
	return row.toDomain()
}
