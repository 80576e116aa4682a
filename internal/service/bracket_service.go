package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketService struct {
	db    *sqlx.DB
	store *store.TournamentStore

	mu  sync.Mutex
	rng bracket.Shuffler

	now func() time.Time
}

func NewBracketService(db *sqlx.DB, store *store.TournamentStore, rng bracket.Shuffler) *BracketService {
	return &BracketService{db: db, store: store, rng: rng, now: time.Now}
}

// Generate builds the bracket from the eligible entrants. Without preserveCompleted every existing match
// is discarded first; with it, decided matches survive as in Regenerate.
func (s *BracketService) Generate(ctx context.Context, tournamentID uuid.UUID, format bracket.Format, ordering bracket.Ordering, preserveCompleted bool) (*bracket.Summary, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %q", bracket.ErrUnsupportedFormat, format)
	}
	if ordering != "" && !ordering.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrdering, ordering)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := loadTournament(ctx, tx, s.store, tournamentID)
	if err != nil {
		return nil, err
	}
	if preserveCompleted && tournament.Generated() && tournament.Format != format {
		return nil, ErrFormatChange
	}
	if ordering == "" {
		ordering = tournament.Ordering
	}

	summary, err := s.rebuild(ctx, tx, tournament, format, ordering, preserveCompleted)
	if err != nil {
		return nil, err
	}
	return summary, tx.Commit()
}

// Regenerate rebuilds everything that is not decided yet, with the stored format and ordering.
// Decided matches keep their ids, entrants, winners and scores.
func (s *BracketService) Regenerate(ctx context.Context, tournamentID uuid.UUID) (*bracket.Summary, error) {
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

	summary, err := s.rebuild(ctx, tx, tournament, tournament.Format, tournament.Ordering, true)
	if err != nil {
		return nil, err
	}
	return summary, tx.Commit()
}

func (s *BracketService) rebuild(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, format bracket.Format, ordering bracket.Ordering, preserve bool) (*bracket.Summary, error) {
	eligible, err := s.store.GetEligibleEntrantsTx(ctx, tx, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get eligible entrants: %w", err)
	}
	if len(eligible) < 2 {
		return nil, bracket.ErrTooFewEntrants
	}

	existing, err := s.store.GetMatchesTx(ctx, tx, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	var preserved []bracket.Match
	var discarded []uuid.UUID
	seated := make(map[uuid.UUID]bool)
	for _, m := range existing {
		if preserve && m.Decided() {
			preserved = append(preserved, m)
			for _, id := range []*uuid.UUID{m.Player1ID, m.Player2ID} {
				if id != nil {
					seated[*id] = true
				}
			}
			continue
		}
		discarded = append(discarded, m.ID)
	}

	var remaining []bracket.Entrant
	for _, e := range eligible {
		if !seated[e.ID] {
			remaining = append(remaining, e)
		}
	}

	// Round robin pairs everyone still eligible. Played pairs are skipped by the builder.
	toPlace := remaining
	if format == bracket.RoundRobin {
		toPlace = eligible
	}

	now := s.now().UTC()
	plan, err := bracket.Build(bracket.BuildParams{
		TournamentID:  tournament.ID,
		Format:        format,
		Entrants:      s.order(toPlace, ordering),
		EligibleCount: len(eligible),
		Preserved:     preserved,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// Everything above only reads. Writes start here.
	if err := s.store.DeleteMatchesTx(ctx, tx, discarded); err != nil {
		return nil, fmt.Errorf("failed to delete matches: %w", err)
	}
	if err := s.store.CreateMatches(ctx, tx, plan.Matches); err != nil {
		return nil, err
	}

	relinked := make(map[uuid.UUID]bracket.Match, len(plan.Relinked))
	for i := range plan.Relinked {
		if err := s.store.UpdateMatchLinksTx(ctx, tx, &plan.Relinked[i]); err != nil {
			return nil, fmt.Errorf("failed to relink match %s: %w", plan.Relinked[i].ID, err)
		}
		relinked[plan.Relinked[i].ID] = plan.Relinked[i]
	}

	if err := s.store.UpdateTournamentSetup(ctx, tx, tournament.ID, format, ordering); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentStarted); err != nil {
		return nil, err
	}
	tournament.Format, tournament.Ordering, tournament.Status = format, ordering, bracket.TournamentStarted

	adv := newAdvancer(ctx, tx, s.store, tournament, now)

	created := make(map[uuid.UUID]bool, len(plan.Matches))
	for _, m := range plan.Matches {
		created[m.ID] = true
	}
	for _, m := range preserved {
		if r, ok := relinked[m.ID]; ok {
			m = r
		}
		if err := adv.replay(&m, created); err != nil {
			return nil, err
		}
	}

	for i := range plan.Matches {
		if plan.Matches[i].IsBye {
			if err := adv.deliver(&plan.Matches[i]); err != nil {
				return nil, err
			}
		}
	}

	if err := adv.settleAll(); err != nil {
		return nil, err
	}
	if err := s.checkPreserved(ctx, tx, tournament.ID, preserved); err != nil {
		return nil, err
	}

	slog.Info("bracket generated",
		"tournament_id", tournament.ID,
		"format", format,
		"bracket_size", plan.Summary.BracketSize,
		"created", plan.Summary.Created,
		"preserved", plan.Summary.Preserved,
		"deleted", len(discarded),
	)
	return &plan.Summary, nil
}

// checkPreserved fails the rebuild if applying the plan changed the outcome of any preserved match.
func (s *BracketService) checkPreserved(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, preserved []bracket.Match) error {
	if len(preserved) == 0 {
		return nil
	}
	current, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*bracket.Match, len(current))
	for i := range current {
		byID[current[i].ID] = &current[i]
	}
	for i := range preserved {
		now, ok := byID[preserved[i].ID]
		if !ok || !preserved[i].SameOutcome(now) {
			return fmt.Errorf("%w: match %s", ErrPreservedChanged, preserved[i].ID)
		}
	}
	return nil
}

func (s *BracketService) order(entrants []bracket.Entrant, ordering bracket.Ordering) []bracket.Entrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bracket.OrderEntrants(entrants, ordering, s.rng)
}
