package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

// ResolutionRepository stores the history of orchestrated resolutions.
type ResolutionRepository struct {
	db *sql.DB
}

// NewResolutionRepository creates a new ResolutionRepository with the given database connection
func NewResolutionRepository(db *sql.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

// ResolutionFilter narrows [ResolutionRepository.List]. Zero values match everything.
type ResolutionFilter struct {
	TrackID string
	Op      models.ResolveOp
	Outcome string
	Limit   int // newest first; 0 means 50
}

// Create inserts a resolution, generating its ID and timestamp when unset.
func (r *ResolutionRepository) Create(ctx context.Context, res *models.Resolution) error {
	if res.TrackID == "" || res.Op == "" || res.Outcome == "" {
		return fmt.Errorf("validation failed: track id, op and outcome are required")
	}
	if res.ID == "" {
		res.ID = shared.GenerateID()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO resolutions (id, track_id, title, op, outcome, resolved_from, attempts, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		res.ID,
		res.TrackID,
		res.Title,
		string(res.Op),
		res.Outcome,
		res.ResolvedFrom,
		res.Attempts,
		res.Err,
		res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert resolution: %w", err)
	}
	return nil
}

// Get retrieves a resolution by ID.
func (r *ResolutionRepository) Get(ctx context.Context, id string) (*models.Resolution, error) {
	query := `
		SELECT id, track_id, title, op, outcome, resolved_from, attempts, error, created_at
		FROM resolutions
		WHERE id = ?
	`

	res, err := scanResolution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "resolution", id)
	}
	return res, nil
}

// List retrieves resolutions matching filter, newest first.
func (r *ResolutionRepository) List(ctx context.Context, filter ResolutionFilter) ([]*models.Resolution, error) {
	query := `
		SELECT id, track_id, title, op, outcome, resolved_from, attempts, error, created_at
		FROM resolutions
		WHERE 1 = 1
	`

	args := []any{}

	if filter.TrackID != "" {
		query += " AND track_id = ?"
		args = append(args, filter.TrackID)
	}

	if filter.Op != "" {
		query += " AND op = ?"
		args = append(args, string(filter.Op))
	}

	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filter.Outcome)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var out []*models.Resolution
	for rows.Next() {
		res, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		out = append(out, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Count returns the number of stored resolutions.
func (r *ResolutionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM resolutions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count resolutions: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep resolutions and returns how many rows were removed.
func (r *ResolutionRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM resolutions
		WHERE rowid NOT IN (
			SELECT rowid FROM resolutions ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`

	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune resolutions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func scanResolution(s scanner) (*models.Resolution, error) {
	var (
		res models.Resolution
		op  string
	)
	err := s.Scan(&res.ID, &res.TrackID, &res.Title, &op, &res.Outcome, &res.ResolvedFrom, &res.Attempts, &res.Err, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	res.Op = models.ResolveOp(op)
	return &res, nil
}
