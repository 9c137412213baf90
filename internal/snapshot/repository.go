package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"macropulse/internal/indicator"
)

// ErrNotFound is returned when no snapshot exists for an indicator.
var ErrNotFound = errors.New("snapshot: not found")

// IndicatorSnapshot is one persisted indicator computation.
type IndicatorSnapshot struct {
	IndicatorKey string           `json:"indicator_key"`
	Status       indicator.Status `json:"status"`
	CurrentValue float64          `json:"current_value"`
	Payload      json.RawMessage  `json:"payload"`
	ComputedAt   time.Time        `json:"computed_at"`
}

// Repository persists indicator snapshots so the dashboard can show
// history across restarts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a snapshot repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Save inserts one snapshot, replacing any snapshot for the same
// indicator and timestamp.
func (r *Repository) Save(ctx context.Context, snap IndicatorSnapshot) error {
	query := `
		INSERT INTO indicator_snapshots (
			indicator_key,
			status,
			current_value,
			payload,
			computed_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (indicator_key, computed_at) DO UPDATE SET
			status = EXCLUDED.status,
			current_value = EXCLUDED.current_value,
			payload = EXCLUDED.payload
	`

	_, err := r.db.Exec(ctx, query,
		snap.IndicatorKey,
		snap.Status.String(),
		snap.CurrentValue,
		snap.Payload,
		snap.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot for %s: %w", snap.IndicatorKey, err)
	}

	return nil
}

// SaveSummary persists a snapshot for every successful result in a summary.
func (r *Repository) SaveSummary(ctx context.Context, summary *indicator.Summary) error {
	for key, result := range summary.Results {
		if result.Status == indicator.StatusFailed {
			continue
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result for %s: %w", key, err)
		}

		snap := IndicatorSnapshot{
			IndicatorKey: key,
			Status:       result.Status,
			CurrentValue: currentValue(result),
			Payload:      payload,
			ComputedAt:   summary.GeneratedAt,
		}
		if err := r.Save(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recent snapshot for an indicator.
func (r *Repository) Latest(ctx context.Context, key string) (*IndicatorSnapshot, error) {
	query := `
		SELECT indicator_key, status, current_value, payload, computed_at
		FROM indicator_snapshots
		WHERE indicator_key = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("query latest snapshot for %s: %w", key, err)
	}

	return snap, nil
}

// History returns up to limit snapshots for an indicator, newest first.
func (r *Repository) History(ctx context.Context, key string, limit int) ([]IndicatorSnapshot, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT indicator_key, status, current_value, payload, computed_at
		FROM indicator_snapshots
		WHERE indicator_key = $1
		ORDER BY computed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshot history for %s: %w", key, err)
	}
	defer rows.Close()

	var snaps []IndicatorSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot for %s: %w", key, err)
		}
		snaps = append(snaps, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots for %s: %w", key, err)
	}

	return snaps, nil
}

// PruneOlderThan deletes snapshots past the retention window.
func (r *Repository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM indicator_snapshots WHERE computed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSnapshot(row pgx.Row) (*IndicatorSnapshot, error) {
	var snap IndicatorSnapshot
	var status string
	if err := row.Scan(&snap.IndicatorKey, &status, &snap.CurrentValue, &snap.Payload, &snap.ComputedAt); err != nil {
		return nil, err
	}
	snap.Status = parseStatus(status)
	return &snap, nil
}

func parseStatus(s string) indicator.Status {
	switch s {
	case "ok":
		return indicator.StatusOK
	case "degraded":
		return indicator.StatusDegraded
	default:
		return indicator.StatusFailed
	}
}

// currentValue extracts the headline number from whichever payload is set.
func currentValue(result indicator.Result) float64 {
	switch {
	case result.Series != nil:
		return result.Series.CurrentValue
	case result.Composite != nil:
		return result.Composite.Latest
	case result.Regime != nil:
		return result.Regime.Growth
	case result.Liquidity != nil:
		return result.Liquidity.CurrentValue
	default:
		return 0
	}
}
