package pgreports

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS discrepancies (
  id BIGSERIAL PRIMARY KEY,
  batch_id TEXT NOT NULL,
  tracking_number TEXT NOT NULL,
  pair INT NOT NULL DEFAULT 0,
  kind TEXT NOT NULL,
  message TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (batch_id, tracking_number, pair, kind)
)`,
		`CREATE INDEX IF NOT EXISTS idx_discrepancies_batch_id ON discrepancies(batch_id, id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
