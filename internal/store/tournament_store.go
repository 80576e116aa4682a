package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Rows per multi-row insert. Keeps a large double elimination grid under the driver's bind limit.
const insertChunk = 50

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, format, ordering, status)
        VALUES (:id, :name, :format, :ordering, :status)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, s.db.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := tx.GetContext(ctx, &tournament, tx.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

// UpdateTournamentSetup records the format and ordering used by the latest generation.
func (s *TournamentStore) UpdateTournamentSetup(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, format bracket.Format, ordering bracket.Ordering) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET format = ?, ordering = ? WHERE id = ?"), format, ordering, id)
	return err
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.TournamentStatus) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET status = ? WHERE id = ?"), status, id)
	return err
}

func (s *TournamentStore) CreateEntrants(ctx context.Context, tx *sqlx.Tx, entrants []bracket.Entrant) error {
	if len(entrants) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO entrants (id, tournament_id, name, seed, eligible, registration_order)
            VALUES (:id, :tournament_id, :name, :seed, :eligible, :registration_order)`, entrants)
	return err
}

func (s *TournamentStore) GetEntrants(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Entrant, error) {
	var entrants []bracket.Entrant
	err := s.db.SelectContext(ctx, &entrants, s.db.Rebind("SELECT * FROM entrants WHERE tournament_id = ? ORDER BY registration_order ASC"), tournamentID)
	return entrants, err
}

func (s *TournamentStore) GetEligibleEntrantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Entrant, error) {
	var entrants []bracket.Entrant
	err := tx.SelectContext(ctx, &entrants, tx.Rebind("SELECT * FROM entrants WHERE tournament_id = ? AND eligible = ? ORDER BY registration_order ASC"), tournamentID, true)
	return entrants, err
}

func (s *TournamentStore) GetEntrant(ctx context.Context, id uuid.UUID) (*bracket.Entrant, error) {
	var entrant bracket.Entrant
	err := s.db.GetContext(ctx, &entrant, s.db.Rebind("SELECT * FROM entrants WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &entrant, nil
}

func (s *TournamentStore) GetEntrantTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Entrant, error) {
	var entrant bracket.Entrant
	err := tx.GetContext(ctx, &entrant, tx.Rebind("SELECT * FROM entrants WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &entrant, nil
}

func (s *TournamentStore) SetEntrantEligibility(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, eligible bool) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE entrants SET eligible = ? WHERE id = ?"), eligible, id)
	return err
}

func (s *TournamentStore) CountEligibleEntrantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM entrants WHERE tournament_id = ? AND eligible = ?"), tournamentID, true)
	return count, err
}

// NextRegistrationOrderTx returns the registration order the next entrant of the tournament gets.
func (s *TournamentStore) NextRegistrationOrderTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var next int
	err := tx.GetContext(ctx, &next, tx.Rebind("SELECT COALESCE(MAX(registration_order) + 1, 0) FROM entrants WHERE tournament_id = ?"), tournamentID)
	return next, err
}

// CreateMatches inserts in slice order. Callers pass link targets before the matches pointing at them.
func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	for start := 0; start < len(matches); start += insertChunk {
		end := min(start+insertChunk, len(matches))
		_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, bracket_type, round, bracket_position,
				player1_id, player2_id, player1_score, player2_score, winner_id, status, is_bye, table_number, completed_at,
				next_match_id, next_match_slot, next_loser_match_id, next_loser_match_slot)
			VALUES (:id, :tournament_id, :bracket_type, :round, :bracket_position,
				:player1_id, :player2_id, :player1_score, :player2_score, :winner_id, :status, :is_bye, :table_number, :completed_at,
				:next_match_id, :next_match_slot, :next_loser_match_id, :next_loser_match_slot)`, matches[start:end])
		if err != nil {
			return fmt.Errorf("failed to insert matches %d-%d: %w", start, end, err)
		}
	}
	return nil
}

const matchOrder = ` ORDER BY CASE bracket_type WHEN 'winner' THEN 0 WHEN 'loser' THEN 1 ELSE 2 END, round ASC, bracket_position ASC`

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, s.db.Rebind("SELECT * FROM matches WHERE tournament_id = ?"+matchOrder), tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, tx.Rebind("SELECT * FROM matches WHERE tournament_id = ?"+matchOrder), tournamentID)
	return matches, err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, s.db.Rebind("SELECT * FROM matches WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, tx.Rebind("SELECT * FROM matches WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// FindMatchTx looks a match up by its place in the topology. sql.ErrNoRows when the key is free.
func (s *TournamentStore) FindMatchTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, key bracket.Key) (*bracket.Match, error) {
	var match bracket.Match
	err := tx.GetContext(ctx, &match, tx.Rebind(`SELECT * FROM matches
		WHERE tournament_id = ? AND bracket_type = ? AND round = ? AND bracket_position = ?`),
		tournamentID, key.Type, key.Round, key.Position)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetRoundTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, bracketType bracket.BracketType, round int) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, tx.Rebind(`SELECT * FROM matches
		WHERE tournament_id = ? AND bracket_type = ? AND round = ? ORDER BY bracket_position ASC`),
		tournamentID, bracketType, round)
	return matches, err
}

// GetFeedersTx returns every match whose winner or loser is routed into the given match.
func (s *TournamentStore) GetFeedersTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, tx.Rebind("SELECT * FROM matches WHERE next_match_id = ? OR next_loser_match_id = ?"), matchID, matchID)
	return matches, err
}

// ClaimSlotTx writes the entrant into the slot only if it is still empty. ok is false when someone got there first.
func (s *TournamentStore) ClaimSlotTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot int, entrantID uuid.UUID) (bool, error) {
	column, err := slotColumn(slot)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE matches SET "+column+" = ? WHERE id = ? AND "+column+" IS NULL"), entrantID, matchID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseSlotTx empties the slot if it still holds the entrant.
func (s *TournamentStore) ReleaseSlotTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot int, entrantID uuid.UUID) error {
	column, err := slotColumn(slot)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind("UPDATE matches SET "+column+" = NULL WHERE id = ? AND "+column+" = ?"), matchID, entrantID)
	return err
}

func slotColumn(slot int) (string, error) {
	switch slot {
	case bracket.Slot1:
		return "player1_id", nil
	case bracket.Slot2:
		return "player2_id", nil
	}
	return "", fmt.Errorf("invalid slot %d", slot)
}

// UpdateMatchTx writes the result columns. Player slots and links have their own updates.
func (s *TournamentStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE matches SET
			player1_score = :player1_score,
			player2_score = :player2_score,
			winner_id = :winner_id,
			status = :status,
			is_bye = :is_bye,
			table_number = :table_number,
			completed_at = :completed_at
		WHERE id = :id`, match)
	return err
}

func (s *TournamentStore) UpdateMatchLinksTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE matches SET
			next_match_id = :next_match_id,
			next_match_slot = :next_match_slot,
			next_loser_match_id = :next_loser_match_id,
			next_loser_match_slot = :next_loser_match_slot
		WHERE id = :id`, match)
	return err
}

func (s *TournamentStore) DeleteMatchesTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM matches WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

// PlacedEntrantIDsTx lists the distinct entrants sitting in any match of the tournament.
func (s *TournamentStore) PlacedEntrantIDsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, tx.Rebind(`SELECT player1_id FROM matches WHERE tournament_id = ? AND player1_id IS NOT NULL
		UNION SELECT player2_id FROM matches WHERE tournament_id = ? AND player2_id IS NOT NULL`), tournamentID, tournamentID)
	return ids, err
}

func (s *TournamentStore) CountOpenMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND status <> ?"), tournamentID, bracket.MatchCompleted)
	return count, err
}
