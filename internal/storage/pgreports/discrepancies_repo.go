package pgreports

import (
	"context"
	"time"

	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// SaveDiscrepancies stores findings of one batch. A finding that is already
// stored (same batch, tracking number, pair and kind) is skipped, so replays
// of a batch are harmless. Returns the number of newly inserted rows.
func (s *Storage) SaveDiscrepancies(ctx context.Context, batchID string, ds []models.Discrepancy) (int, error) {
	if len(ds) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, d := range ds {
		tag, err := tx.Exec(ctx, `
INSERT INTO discrepancies (batch_id, tracking_number, pair, kind, message, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (batch_id, tracking_number, pair, kind) DO NOTHING
`, batchID, d.TrackingNumber, d.Pair, d.Kind, d.Message, now)
		if err != nil {
			return 0, errors.Wrap(err, "insert discrepancy")
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return inserted, nil
}

func (s *Storage) ListDiscrepancies(ctx context.Context, batchID string) ([]models.Discrepancy, error) {
	rows, err := s.db.Query(ctx, `
SELECT batch_id, tracking_number, pair, kind, message, created_at
FROM discrepancies
WHERE batch_id = $1
ORDER BY id
`, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "select discrepancies")
	}
	defer rows.Close()

	out := []models.Discrepancy{}
	for rows.Next() {
		var d models.Discrepancy
		if err := rows.Scan(&d.BatchID, &d.TrackingNumber, &d.Pair, &d.Kind, &d.Message, &d.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan discrepancy")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}
