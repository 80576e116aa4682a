package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const maxNameLength = 100

type TournamentService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	venues *store.VenueStore
	stats  *store.StatsStore
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, venues *store.VenueStore, stats *store.StatsStore) *TournamentService {
	return &TournamentService{db: db, store: store, venues: venues, stats: stats}
}

func loadTournament(ctx context.Context, tx *sqlx.Tx, s *store.TournamentStore, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.GetTournamentTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return tournament, nil
}

func (s *TournamentService) CreateTournament(ctx context.Context, name string, ordering bracket.Ordering) (*bracket.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: tournament name must be 1-%d characters", ErrInvalidInput, maxNameLength)
	}
	if ordering == "" {
		ordering = bracket.RandomDraw
	}
	if !ordering.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrdering, ordering)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament := bracket.Tournament{
		ID:       uuid.New(),
		Name:     name,
		Ordering: ordering,
		Status:   bracket.TournamentDraft,
	}
	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return nil, err
	}

	// Re-read for the database defaults
	created, err := s.store.GetTournamentTx(ctx, tx, tournament.ID)
	if err != nil {
		return nil, err
	}
	return created, tx.Commit()
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	return tournament, err
}

// AddTables registers count more tables, numbered after the highest existing one.
func (s *TournamentService) AddTables(ctx context.Context, tournamentID uuid.UUID, count int) ([]bracket.Table, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: table count must be positive", ErrInvalidInput)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := loadTournament(ctx, tx, s.store, tournamentID); err != nil {
		return nil, err
	}

	highest, err := s.venues.MaxTableNumberTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	tables := make([]bracket.Table, 0, count)
	for i := 1; i <= count; i++ {
		tables = append(tables, bracket.Table{TournamentID: tournamentID, TableNumber: highest + i})
	}
	if err := s.venues.CreateTables(ctx, tx, tables); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return tables, tx.Commit()
}

func (s *TournamentService) GetTables(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Table, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.venues.GetTables(ctx, tournamentID)
}

// GetStructure returns the bracket grouped by type and round.
func (s *TournamentService) GetStructure(ctx context.Context, id uuid.UUID) (*bracket.Structure, error) {
	var (
		tournament *bracket.Tournament
		entrants   []bracket.Entrant
		matches    []bracket.Match
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.GetTournament(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		entrants, err = s.store.GetEntrants(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.store.GetMatches(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return bracket.GroupByRound(tournament, entrants, matches), nil
}

func (s *TournamentService) GetEntrantStats(ctx context.Context, entrantID uuid.UUID) (*bracket.Stats, error) {
	if _, err := s.store.GetEntrant(ctx, entrantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntrantNotFound
		}
		return nil, err
	}
	return s.stats.GetStats(ctx, entrantID)
}
