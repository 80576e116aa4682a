package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/store"
	"github.com/AdamBeresnev/op-tournament-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxEntrantNameLength = 50

type EntryService struct {
	db    *sqlx.DB
	store *store.TournamentStore

	now func() time.Time
}

func NewEntryService(db *sqlx.DB, store *store.TournamentStore) *EntryService {
	return &EntryService{db: db, store: store, now: time.Now}
}

type EntrantInput struct {
	Name string `json:"name"`
	Seed *int   `json:"seed,omitempty"`
}

// LateEntry tells where a late entrant ended up.
type LateEntry struct {
	EntrantID uuid.UUID   `json:"entrant_id"`
	MatchIDs  []uuid.UUID `json:"match_ids"`
	// True when new matches had to be created for the entrant
	Created bool `json:"created"`
}

// RegisterEntrants adds eligible entrants in input order. Registration order continues from the last one.
func (s *EntryService) RegisterEntrants(ctx context.Context, tournamentID uuid.UUID, inputs []EntrantInput) ([]bracket.Entrant, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no entrants given", ErrInvalidInput)
	}
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" || len(name) > maxEntrantNameLength {
			return nil, fmt.Errorf("%w: entrant %d name must be 1-%d characters", ErrInvalidInput, i+1, maxEntrantNameLength)
		}
		if in.Seed != nil && *in.Seed < 1 {
			return nil, fmt.Errorf("%w: entrant %d seed must be positive", ErrInvalidInput, i+1)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := loadTournament(ctx, tx, s.store, tournamentID); err != nil {
		return nil, err
	}

	next, err := s.store.NextRegistrationOrderTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	entrants := make([]bracket.Entrant, 0, len(inputs))
	for i, in := range inputs {
		entrants = append(entrants, bracket.Entrant{
			ID:                uuid.New(),
			TournamentID:      tournamentID,
			Name:              strings.TrimSpace(in.Name),
			Seed:              in.Seed,
			Eligible:          true,
			RegistrationOrder: next + i,
		})
	}

	if err := s.store.CreateEntrants(ctx, tx, entrants); err != nil {
		return nil, fmt.Errorf("failed to create entrants: %w", err)
	}
	return entrants, tx.Commit()
}

// SetEligibility flips whether the entrant takes part in the next generation or late entry.
// Matches the entrant already sits in are left alone.
func (s *EntryService) SetEligibility(ctx context.Context, entrantID uuid.UUID, eligible bool) (*bracket.Entrant, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entrant, err := s.store.GetEntrantTx(ctx, tx, entrantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntrantNotFound
		}
		return nil, err
	}

	if err := s.store.SetEntrantEligibility(ctx, tx, entrantID, eligible); err != nil {
		return nil, err
	}
	entrant.Eligible = eligible
	return entrant, tx.Commit()
}

// AddLateEntrant puts an eligible entrant into an already generated bracket without rebuilding it.
func (s *EntryService) AddLateEntrant(ctx context.Context, tournamentID, entrantID uuid.UUID) (*LateEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := loadTournament(ctx, tx, s.store, tournamentID)
	if err != nil {
		return nil, err
	}
	if !tournament.Generated() {
		return nil, ErrBracketNotGenerated
	}

	entrant, err := s.store.GetEntrantTx(ctx, tx, entrantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntrantNotFound
		}
		return nil, err
	}
	if entrant.TournamentID != tournamentID {
		return nil, ErrEntrantNotFound
	}
	if !entrant.Eligible {
		return nil, ErrEntrantNotEligible
	}

	placed, err := s.store.PlacedEntrantIDsTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get placed entrants: %w", err)
	}
	for _, id := range placed {
		if id == entrantID {
			return nil, ErrEntrantAlreadyPlaced
		}
	}

	adv := newAdvancer(ctx, tx, s.store, tournament, s.now().UTC())

	var entry *LateEntry
	if tournament.Format == bracket.RoundRobin {
		entry, err = s.joinRoundRobin(ctx, tx, adv, entrantID, placed)
	} else {
		entry, err = s.joinElimination(ctx, tx, adv, entrantID, len(placed))
	}
	if err != nil {
		return nil, err
	}

	slog.Info("late entrant added",
		"tournament_id", tournamentID,
		"entrant_id", entrantID,
		"matches", len(entry.MatchIDs),
		"created", entry.Created,
	)
	return entry, tx.Commit()
}

// joinRoundRobin pairs the entrant with everyone already placed.
func (s *EntryService) joinRoundRobin(ctx context.Context, tx *sqlx.Tx, adv *advancer, entrantID uuid.UUID, placed []uuid.UUID) (*LateEntry, error) {
	existing, err := s.store.GetRoundTx(ctx, tx, adv.tournament.ID, bracket.WinnerBracket, 1)
	if err != nil {
		return nil, err
	}
	position := 0
	for _, m := range existing {
		position = max(position, m.BracketPosition+1)
	}

	entry := &LateEntry{EntrantID: entrantID, Created: true}
	matches := make([]bracket.Match, 0, len(placed))
	for _, opponent := range placed {
		m := bracket.Match{
			ID:              uuid.New(),
			TournamentID:    adv.tournament.ID,
			BracketType:     bracket.WinnerBracket,
			Round:           1,
			BracketPosition: position,
			Player1ID:       utils.Ptr(opponent),
			Player2ID:       utils.Ptr(entrantID),
			Status:          bracket.MatchPending,
		}
		matches = append(matches, m)
		entry.MatchIDs = append(entry.MatchIDs, m.ID)
		position++
	}

	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, err
	}

	// New pairings reopen a finished round robin
	if adv.tournament.Status == bracket.TournamentCompleted && len(matches) > 0 {
		if err := s.store.UpdateTournamentStatusTx(ctx, tx, adv.tournament.ID, bracket.TournamentStarted); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// joinElimination seats the entrant in the first usable round-one match, or appends a new one.
func (s *EntryService) joinElimination(ctx context.Context, tx *sqlx.Tx, adv *advancer, entrantID uuid.UUID, placed int) (*LateEntry, error) {
	eligible, err := s.store.CountEligibleEntrantsTx(ctx, tx, adv.tournament.ID)
	if err != nil {
		return nil, err
	}
	size := bracket.BracketSize(eligible)
	if placed >= size {
		return nil, &CapacityError{BracketSize: size, Placed: placed}
	}

	roundOne, err := s.store.GetRoundTx(ctx, tx, adv.tournament.ID, bracket.WinnerBracket, 1)
	if err != nil {
		return nil, err
	}

	last := -1
	for i := range roundOne {
		m := &roundOne[i]
		last = max(last, m.BracketPosition)
		if m.BracketPosition >= size/2 {
			continue
		}
		ok, err := adv.canSeat(m)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := adv.seatLate(m, entrantID); err != nil {
			return nil, err
		}
		return &LateEntry{EntrantID: entrantID, MatchIDs: []uuid.UUID{m.ID}}, nil
	}

	position := last + 1
	if position >= size/2 {
		return nil, &CapacityError{BracketSize: size, Placed: placed, Reason: "every round-one match is in use or leads into a played match"}
	}

	target, slot, err := s.roundTwoTarget(ctx, tx, adv, position)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &CapacityError{BracketSize: size, Placed: placed, Reason: "no round-two match has room"}
	}

	m := bracket.Match{
		ID:              uuid.New(),
		TournamentID:    adv.tournament.ID,
		BracketType:     bracket.WinnerBracket,
		Round:           1,
		BracketPosition: position,
		Player1ID:       utils.Ptr(entrantID),
		Status:          bracket.MatchPending,
		NextMatchID:     utils.Ptr(target.ID),
		NextMatchSlot:   utils.Ptr(slot),
	}

	if adv.tournament.Format == bracket.DoubleElimination {
		if route, ok := bracket.LoserRoute(size, 1, position); ok {
			lb, err := s.store.FindMatchTx(ctx, tx, adv.tournament.ID, route.Target)
			switch {
			case err == nil:
				m.NextLoserMatchID = utils.Ptr(lb.ID)
				m.NextLoserMatchSlot = utils.Ptr(route.Slot)
			case !errors.Is(err, sql.ErrNoRows):
				return nil, err
			}
		}
	}

	if err := s.store.CreateMatches(ctx, tx, []bracket.Match{m}); err != nil {
		return nil, fmt.Errorf("failed to append round-one match: %w", err)
	}
	if err := adv.byeIfRoutable(&m); err != nil {
		return nil, err
	}
	return &LateEntry{EntrantID: entrantID, MatchIDs: []uuid.UUID{m.ID}, Created: true}, nil
}

// roundTwoTarget picks where an appended round-one match sends its winner: the builder's target when it
// exists and has room, otherwise the nearest round-two match with room. nil when nothing has room.
func (s *EntryService) roundTwoTarget(ctx context.Context, tx *sqlx.Tx, adv *advancer, position int) (*bracket.Match, int, error) {
	roundTwo, err := s.store.GetRoundTx(ctx, tx, adv.tournament.ID, bracket.WinnerBracket, 2)
	if err != nil {
		return nil, 0, err
	}

	want := position / 2
	sort.SliceStable(roundTwo, func(i, j int) bool {
		return distance(roundTwo[i].BracketPosition, want) < distance(roundTwo[j].BracketPosition, want)
	})

	for i := range roundTwo {
		t := &roundTwo[i]
		ok, err := hasRoom(adv, t)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		if t.BracketPosition == want {
			return t, bracket.WinnerSlot(position), nil
		}
		slot, free := t.FreeSlot()
		if !free {
			slot = bracket.WinnerSlot(position)
		}
		return t, slot, nil
	}
	return nil, 0, nil
}

// hasRoom reports whether m can take one more feeder without squeezing out the feeders it already has.
func hasRoom(adv *advancer, m *bracket.Match) (bool, error) {
	if m.IsCompleted() {
		return adv.reopenable(m)
	}
	feeders, err := adv.store.GetFeedersTx(adv.ctx, adv.tx, m.ID)
	if err != nil {
		return false, err
	}
	open := 0
	for _, f := range feeders {
		if !f.IsCompleted() {
			open++
		}
	}
	return 2-m.EntrantCount() > open, nil
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
