package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type StatsStore struct {
	db *sqlx.DB
}

func NewStatsStore(db *sqlx.DB) *StatsStore {
	return &StatsStore{db: db}
}

func (s *StatsStore) RecordWinTx(ctx context.Context, tx *sqlx.Tx, entrantID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO entrant_stats (entrant_id, wins, losses) VALUES (?, 1, 0)
		ON CONFLICT (entrant_id) DO UPDATE SET wins = entrant_stats.wins + 1`), entrantID)
	return err
}

func (s *StatsStore) RecordLossTx(ctx context.Context, tx *sqlx.Tx, entrantID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO entrant_stats (entrant_id, wins, losses) VALUES (?, 0, 1)
		ON CONFLICT (entrant_id) DO UPDATE SET losses = entrant_stats.losses + 1`), entrantID)
	return err
}

// GetStats returns zero counters for an entrant that has not finished a match yet.
func (s *StatsStore) GetStats(ctx context.Context, entrantID uuid.UUID) (*bracket.Stats, error) {
	var stats bracket.Stats
	err := s.db.GetContext(ctx, &stats, s.db.Rebind("SELECT * FROM entrant_stats WHERE entrant_id = ?"), entrantID)
	if errors.Is(err, sql.ErrNoRows) {
		return &bracket.Stats{EntrantID: entrantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
