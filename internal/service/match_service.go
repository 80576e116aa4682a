package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/store"
	"github.com/AdamBeresnev/op-tournament-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	venues *store.VenueStore
	stats  *store.StatsStore

	now func() time.Time
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, venues *store.VenueStore, stats *store.StatsStore) *MatchService {
	return &MatchService{db: db, store: store, venues: venues, stats: stats, now: time.Now}
}

type ResultInput struct {
	Player1Score int        `json:"player1_score"`
	Player2Score int        `json:"player2_score"`
	WinnerID     *uuid.UUID `json:"winner_id,omitempty"`
	TableNumber  *int       `json:"table_number,omitempty"`
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	m, err := s.store.GetMatch(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	return m, err
}

// SubmitResult records scores and an optional table. With a winner the match completes, its table is
// freed, win/loss counters move and the result propagates through the bracket, all in one transaction.
func (s *MatchService) SubmitResult(ctx context.Context, matchID uuid.UUID, in ResultInput) (*bracket.Match, error) {
	if in.Player1Score < 0 || in.Player2Score < 0 {
		return nil, ErrInvalidScore
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if match.IsCompleted() {
		return nil, ErrMatchCompleted
	}

	// Verify winner is in the match
	if in.WinnerID != nil {
		if match.Player1ID == nil || match.Player2ID == nil {
			return nil, ErrMatchNotReady
		}
		if !match.HasEntrant(*in.WinnerID) {
			return nil, ErrWinnerNotInMatch
		}
	}

	tournament, err := loadTournament(ctx, tx, s.store, match.TournamentID)
	if err != nil {
		return nil, err
	}

	moveTable := in.TableNumber != nil && utils.OrZero(match.TableNumber) != *in.TableNumber
	if moveTable {
		table, err := s.venues.GetTableTx(ctx, tx, match.TournamentID, *in.TableNumber)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, err
		}
		if !table.Free() && *table.MatchID != match.ID {
			return nil, ErrTableInUse
		}
	}

	// Validation done, writes from here on
	if moveTable {
		if err := s.venues.ReleaseTablesTx(ctx, tx, match.ID); err != nil {
			return nil, err
		}
		ok, err := s.venues.ClaimTableTx(ctx, tx, match.TournamentID, *in.TableNumber, match.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrTableInUse
		}
		match.TableNumber = in.TableNumber
	}

	match.Player1Score = in.Player1Score
	match.Player2Score = in.Player2Score

	now := s.now().UTC()
	adv := newAdvancer(ctx, tx, s.store, tournament, now)

	if in.WinnerID == nil {
		if match.Status == bracket.MatchPending && (in.Player1Score > 0 || in.Player2Score > 0 || match.TableNumber != nil) {
			match.Status = bracket.MatchInProgress
		}
		if err := adv.save(match); err != nil {
			return nil, err
		}
		return match, tx.Commit()
	}

	match.Status = bracket.MatchCompleted
	match.WinnerID = in.WinnerID
	match.CompletedAt = utils.Ptr(now)

	if err := s.venues.ReleaseTablesTx(ctx, tx, match.ID); err != nil {
		return nil, fmt.Errorf("failed to release table: %w", err)
	}
	if err := s.stats.RecordWinTx(ctx, tx, *match.WinnerID); err != nil {
		return nil, fmt.Errorf("failed to record win: %w", err)
	}
	if err := s.stats.RecordLossTx(ctx, tx, *match.LoserID()); err != nil {
		return nil, fmt.Errorf("failed to record loss: %w", err)
	}

	if err := adv.save(match); err != nil {
		return nil, err
	}
	if err := adv.advance(match); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.store.GetMatch(ctx, match.ID)
}
