package store

import (
	"context"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type VenueStore struct {
	db *sqlx.DB
}

func NewVenueStore(db *sqlx.DB) *VenueStore {
	return &VenueStore{db: db}
}

func (s *VenueStore) CreateTables(ctx context.Context, tx *sqlx.Tx, tables []bracket.Table) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO venue_tables (tournament_id, table_number, match_id)
		VALUES (:tournament_id, :table_number, :match_id)`, tables)
	return err
}

func (s *VenueStore) GetTables(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Table, error) {
	var tables []bracket.Table
	err := s.db.SelectContext(ctx, &tables, s.db.Rebind("SELECT * FROM venue_tables WHERE tournament_id = ? ORDER BY table_number ASC"), tournamentID)
	return tables, err
}

func (s *VenueStore) GetTableTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, number int) (*bracket.Table, error) {
	var table bracket.Table
	err := tx.GetContext(ctx, &table, tx.Rebind("SELECT * FROM venue_tables WHERE tournament_id = ? AND table_number = ?"), tournamentID, number)
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (s *VenueStore) MaxTableNumberTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COALESCE(MAX(table_number), 0) FROM venue_tables WHERE tournament_id = ?"), tournamentID)
	return n, err
}

// ClaimTableTx hands a free table to the match. ok is false when another match holds it.
func (s *VenueStore) ClaimTableTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, number int, matchID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE venue_tables SET match_id = ?
		WHERE tournament_id = ? AND table_number = ? AND match_id IS NULL`), matchID, tournamentID, number)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseTablesTx frees whatever table the match holds.
func (s *VenueStore) ReleaseTablesTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE venue_tables SET match_id = NULL WHERE match_id = ?"), matchID)
	return err
}
