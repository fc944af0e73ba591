package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
)

// HealthRepository persists [models.ProviderHealth] snapshots so rolling averages and enabled flags survive restarts.
type HealthRepository struct {
	db *sql.DB
}

// NewHealthRepository creates a new HealthRepository with the given database connection
func NewHealthRepository(db *sql.DB) *HealthRepository {
	return &HealthRepository{db: db}
}

const upsertHealth = `
	INSERT INTO provider_health (provider_id, enabled, success_rate, avg_latency_ms, samples, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(provider_id) DO UPDATE SET
		enabled = excluded.enabled,
		success_rate = excluded.success_rate,
		avg_latency_ms = excluded.avg_latency_ms,
		samples = excluded.samples,
		updated_at = excluded.updated_at
`

// Save inserts or replaces the snapshot for h.ProviderID.
func (r *HealthRepository) Save(ctx context.Context, h models.ProviderHealth) error {
	if h.ProviderID == "" {
		return fmt.Errorf("validation failed: provider id is required")
	}
	if _, err := r.db.ExecContext(ctx, upsertHealth, healthArgs(h)...); err != nil {
		return fmt.Errorf("failed to save provider health: %w", err)
	}
	return nil
}

// SaveAll upserts every snapshot in one transaction.
func (r *HealthRepository) SaveAll(ctx context.Context, snapshots []models.ProviderHealth) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertHealth)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, h := range snapshots {
			if h.ProviderID == "" {
				return fmt.Errorf("validation failed: provider id is required")
			}
			if _, err := stmt.ExecContext(ctx, healthArgs(h)...); err != nil {
				return fmt.Errorf("failed to save health for %s: %w", h.ProviderID, err)
			}
		}
		return nil
	})
}

// Get retrieves the snapshot for one provider.
func (r *HealthRepository) Get(ctx context.Context, providerID string) (models.ProviderHealth, error) {
	query := `
		SELECT provider_id, enabled, success_rate, avg_latency_ms, samples, updated_at
		FROM provider_health
		WHERE provider_id = ?
	`

	h, err := scanHealth(r.db.QueryRowContext(ctx, query, providerID))
	if err != nil {
		return models.ProviderHealth{}, notFound(err, "provider health", providerID)
	}
	return h, nil
}

// List retrieves every snapshot ordered by provider ID.
func (r *HealthRepository) List(ctx context.Context) ([]models.ProviderHealth, error) {
	query := `
		SELECT provider_id, enabled, success_rate, avg_latency_ms, samples, updated_at
		FROM provider_health
		ORDER BY provider_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider health: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderHealth
	for rows.Next() {
		h, err := scanHealth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider health: %w", err)
		}
		out = append(out, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Delete removes the snapshot for one provider.
func (r *HealthRepository) Delete(ctx context.Context, providerID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM provider_health WHERE provider_id = ?", providerID)
	if err != nil {
		return fmt.Errorf("failed to delete provider health: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: provider health %s", ErrNotFound, providerID)
	}
	return nil
}

func healthArgs(h models.ProviderHealth) []any {
	updatedAt := h.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	return []any{h.ProviderID, h.Enabled, h.SuccessRate, h.AvgLatency.Milliseconds(), h.Samples, updatedAt.UTC()}
}

func scanHealth(s scanner) (models.ProviderHealth, error) {
	var (
		h         models.ProviderHealth
		latencyMs int64
	)
	if err := s.Scan(&h.ProviderID, &h.Enabled, &h.SuccessRate, &latencyMs, &h.Samples, &h.UpdatedAt); err != nil {
		return models.ProviderHealth{}, err
	}
	h.AvgLatency = time.Duration(latencyMs) * time.Millisecond
	return h, nil
}
