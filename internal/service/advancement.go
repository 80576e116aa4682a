package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/store"
	"github.com/AdamBeresnev/op-tournament-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// advancer moves entrants through the stored match graph. It lives for one transaction and never commits.
type advancer struct {
	ctx        context.Context
	tx         *sqlx.Tx
	store      *store.TournamentStore
	tournament *bracket.Tournament
	now        time.Time
}

func newAdvancer(ctx context.Context, tx *sqlx.Tx, store *store.TournamentStore, tournament *bracket.Tournament, now time.Time) *advancer {
	return &advancer{ctx: ctx, tx: tx, store: store, tournament: tournament, now: now}
}

func (a *advancer) load(id uuid.UUID) (*bracket.Match, error) {
	m, err := a.store.GetMatchTx(a.ctx, a.tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", id, err)
	}
	return m, nil
}

func (a *advancer) save(m *bracket.Match) error {
	if err := a.store.UpdateMatchTx(a.ctx, a.tx, m); err != nil {
		return fmt.Errorf("failed to update match %s: %w", m.ID, err)
	}
	return nil
}

// advance pushes the outcome of a completed match into the matches it feeds.
func (a *advancer) advance(m *bracket.Match) error {
	if m.WinnerID != nil && m.NextMatchID != nil {
		if err := a.place(*m.WinnerID, *m.NextMatchID, utils.OrZero(m.NextMatchSlot)); err != nil {
			return err
		}
	}

	if loser := m.LoserID(); loser != nil && m.BracketType == bracket.WinnerBracket && a.tournament.Format == bracket.DoubleElimination {
		if err := a.dropLoser(m, *loser); err != nil {
			return err
		}
	}

	// Byes and empty matches send nobody on one side, which may decide the target
	if m.NextMatchID != nil {
		if err := a.settle(*m.NextMatchID); err != nil {
			return err
		}
	}
	if m.NextLoserMatchID != nil {
		if err := a.settle(*m.NextLoserMatchID); err != nil {
			return err
		}
	}

	if m.NextMatchID == nil && m.WinnerID != nil {
		return a.finish(m)
	}
	return nil
}

// place writes the entrant into the target, preferring the routed slot, then runs the sweep one round back.
func (a *advancer) place(entrantID, matchID uuid.UUID, slot int) error {
	target, err := a.load(matchID)
	if err != nil {
		return err
	}
	if target.HasEntrant(entrantID) {
		return nil
	}

	if target.IsCompleted() {
		if err := a.reopen(target, entrantID); err != nil {
			return err
		}
	}

	if err := a.claim(target, entrantID, slot); err != nil {
		return err
	}
	return a.sweep(target.BracketType, target.Round-1)
}

func (a *advancer) claim(target *bracket.Match, entrantID uuid.UUID, slot int) error {
	order := [2]int{bracket.Slot1, bracket.Slot2}
	if slot == bracket.Slot2 {
		order = [2]int{bracket.Slot2, bracket.Slot1}
	}

	for _, s := range order {
		ok, err := a.store.ClaimSlotTx(a.ctx, a.tx, target.ID, s, entrantID)
		if err != nil {
			return fmt.Errorf("failed to claim slot %d of match %s: %w", s, target.ID, err)
		}
		if ok {
			target.SetPlayer(s, utils.Ptr(entrantID))
			return nil
		}
	}
	return &PlacementError{EntrantID: entrantID, MatchID: target.ID, Reason: "both slots are taken"}
}

// reopen turns a match the engine decided on its own back into a pending one.
// A bye first gives back the place its winner took further on.
func (a *advancer) reopen(m *bracket.Match, incoming uuid.UUID) error {
	if !m.Structural() {
		return &PlacementError{EntrantID: incoming, MatchID: m.ID, Reason: "match has already been played"}
	}
	if m.WinnerID != nil {
		if err := a.retract(m); err != nil {
			return err
		}
	}
	if m.NextMatchID == nil && a.tournament.Status == bracket.TournamentCompleted {
		if err := a.store.UpdateTournamentStatusTx(a.ctx, a.tx, a.tournament.ID, bracket.TournamentStarted); err != nil {
			return err
		}
		a.tournament.Status = bracket.TournamentStarted
	}
	m.Reopen()
	return a.save(m)
}

// retract removes a bye winner from the match it advanced into, reopening that match too if it was a bye.
func (a *advancer) retract(m *bracket.Match) error {
	if m.WinnerID == nil || m.NextMatchID == nil {
		return nil
	}
	winner := *m.WinnerID

	next, err := a.load(*m.NextMatchID)
	if err != nil {
		return err
	}
	slot := next.SlotOf(winner)
	if slot == 0 {
		return nil
	}
	if next.IsCompleted() {
		if err := a.reopen(next, winner); err != nil {
			return err
		}
	}
	return a.store.ReleaseSlotTx(a.ctx, a.tx, next.ID, slot, winner)
}

// reopenable reports whether an entrant could still be routed into m: it is open, or it was decided
// structurally and the chain of byes after it ends before any match that was played.
func (a *advancer) reopenable(m *bracket.Match) (bool, error) {
	for m.IsCompleted() {
		if !m.Structural() {
			return false, nil
		}
		if m.NextMatchID == nil {
			return true, nil
		}
		next, err := a.load(*m.NextMatchID)
		if err != nil {
			return false, err
		}
		m = next
	}
	return true, nil
}

// accepts reports whether m can take one more entrant right now.
func (a *advancer) accepts(m *bracket.Match) (bool, error) {
	if !m.IsCompleted() {
		_, free := m.FreeSlot()
		return free, nil
	}
	return a.reopenable(m)
}

// settle decides a match that can no longer be played once every feeder is done.
// One entrant gets a bye, none leaves it empty. Either way its own targets settle next.
func (a *advancer) settle(matchID uuid.UUID) error {
	m, err := a.load(matchID)
	if err != nil {
		return err
	}
	if m.IsCompleted() || m.EntrantCount() == 2 {
		return nil
	}

	done, err := a.feedersDone(m)
	if err != nil || !done {
		return err
	}

	if winner := m.SoleEntrant(); winner != nil {
		m.MarkBye(*winner, a.now)
	} else {
		m.MarkEmpty(a.now)
	}
	if err := a.save(m); err != nil {
		return err
	}
	return a.advance(m)
}

// feedersDone is false for a match nothing feeds, so round one is left to the sweep.
func (a *advancer) feedersDone(m *bracket.Match) (bool, error) {
	feeders, err := a.store.GetFeedersTx(a.ctx, a.tx, m.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load feeders of match %s: %w", m.ID, err)
	}
	if len(feeders) == 0 {
		return false, nil
	}
	for _, f := range feeders {
		if !f.IsCompleted() {
			return false, nil
		}
	}
	return true, nil
}

// sweep closes the empty matches of a round once nothing can reach them any more. Round-one matches
// have no feeders, so they close as soon as the round after them starts filling.
func (a *advancer) sweep(bracketType bracket.BracketType, round int) error {
	if round < 1 {
		return nil
	}

	matches, err := a.store.GetRoundTx(a.ctx, a.tx, a.tournament.ID, bracketType, round)
	if err != nil {
		return fmt.Errorf("failed to load round %d: %w", round, err)
	}

	for _, candidate := range matches {
		// Earlier iterations may have cascaded into this round
		m, err := a.load(candidate.ID)
		if err != nil {
			return err
		}
		if m.IsCompleted() || m.EntrantCount() > 0 {
			continue
		}

		feeders, err := a.store.GetFeedersTx(a.ctx, a.tx, m.ID)
		if err != nil {
			return err
		}
		open := false
		for _, f := range feeders {
			if !f.IsCompleted() {
				open = true
				break
			}
		}
		if open {
			continue
		}

		m.MarkEmpty(a.now)
		if err := a.save(m); err != nil {
			return err
		}
		if err := a.advance(m); err != nil {
			return err
		}
	}
	return nil
}

// dropLoser sends a winner bracket loser to its loser bracket slot. A loser with nowhere to go is
// logged and left out rather than failing the result.
func (a *advancer) dropLoser(m *bracket.Match, loserID uuid.UUID) error {
	var target *bracket.Match
	slot := utils.OrZero(m.NextLoserMatchSlot)

	if m.NextLoserMatchID != nil {
		t, err := a.load(*m.NextLoserMatchID)
		if err != nil {
			return err
		}
		target = t
	} else {
		round := 2*m.Round - 1
		candidates, err := a.store.GetRoundTx(a.ctx, a.tx, a.tournament.ID, bracket.LoserBracket, round)
		if err != nil {
			return err
		}
		for i := range candidates {
			if candidates[i].IsCompleted() {
				continue
			}
			if free, ok := candidates[i].FreeSlot(); ok {
				target = &candidates[i]
				slot = free
				break
			}
		}
		if target == nil {
			slog.Warn("no loser bracket slot for dropped entrant",
				"tournament_id", a.tournament.ID, "match_id", m.ID, "entrant_id", loserID, "loser_round", round)
			return nil
		}
	}

	ok, err := a.reopenable(target)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("loser bracket route runs into a played match",
			"tournament_id", a.tournament.ID, "match_id", m.ID, "entrant_id", loserID, "target_id", target.ID)
		return nil
	}
	return a.place(loserID, target.ID, slot)
}

// finish handles a decided match with no forward link.
func (a *advancer) finish(m *bracket.Match) error {
	switch m.BracketType {
	case bracket.GrandFinal:
		if m.Round == 1 && !m.IsBye && m.Player2ID != nil && *m.WinnerID == *m.Player2ID {
			return a.resetBracket(m)
		}
		return a.completeTournament()
	case bracket.WinnerBracket:
		switch a.tournament.Format {
		case bracket.SingleElimination:
			return a.completeTournament()
		case bracket.RoundRobin:
			open, err := a.store.CountOpenMatchesTx(a.ctx, a.tx, a.tournament.ID)
			if err != nil {
				return err
			}
			if open == 0 {
				return a.completeTournament()
			}
		}
	}
	return nil
}

// resetBracket adds the deciding grand final after the loser bracket champion wins game one.
func (a *advancer) resetBracket(gameOne *bracket.Match) error {
	key := bracket.Key{Type: bracket.GrandFinal, Round: 2, Position: 0}
	existing, err := a.store.FindMatchTx(a.ctx, a.tx, a.tournament.ID, key)
	if err == nil {
		if gameOne.NextMatchID != nil {
			return nil
		}
		gameOne.NextMatchID = utils.Ptr(existing.ID)
		gameOne.NextMatchSlot = utils.Ptr(bracket.Slot2)
		return a.store.UpdateMatchLinksTx(a.ctx, a.tx, gameOne)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	reset := bracket.Match{
		ID:              uuid.New(),
		TournamentID:    a.tournament.ID,
		BracketType:     bracket.GrandFinal,
		Round:           key.Round,
		BracketPosition: key.Position,
		Player1ID:       gameOne.Player1ID,
		Player2ID:       gameOne.Player2ID,
		Status:          bracket.MatchPending,
	}
	if err := a.store.CreateMatches(a.ctx, a.tx, []bracket.Match{reset}); err != nil {
		return fmt.Errorf("failed to create bracket reset: %w", err)
	}

	gameOne.NextMatchID = utils.Ptr(reset.ID)
	gameOne.NextMatchSlot = utils.Ptr(bracket.Slot2)
	if err := a.store.UpdateMatchLinksTx(a.ctx, a.tx, gameOne); err != nil {
		return err
	}

	slog.Info("bracket reset", "tournament_id", a.tournament.ID, "match_id", reset.ID)
	return nil
}

func (a *advancer) completeTournament() error {
	if a.tournament.Status == bracket.TournamentCompleted {
		return nil
	}
	if err := a.store.UpdateTournamentStatusTx(a.ctx, a.tx, a.tournament.ID, bracket.TournamentCompleted); err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	a.tournament.Status = bracket.TournamentCompleted
	slog.Info("tournament completed", "tournament_id", a.tournament.ID)
	return nil
}

// replay re-sends the entrants of a preserved match into targets that were just recreated. Nothing settles
// here: other preserved matches may still have entrants to deliver into the same targets.
func (a *advancer) replay(m *bracket.Match, created map[uuid.UUID]bool) error {
	if m.WinnerID != nil && m.NextMatchID != nil && created[*m.NextMatchID] {
		target, err := a.load(*m.NextMatchID)
		if err != nil {
			return err
		}
		if err := a.claim(target, *m.WinnerID, utils.OrZero(m.NextMatchSlot)); err != nil {
			return err
		}
	}

	loser := m.LoserID()
	if loser != nil && m.BracketType == bracket.WinnerBracket && a.tournament.Format == bracket.DoubleElimination &&
		m.NextLoserMatchID != nil && created[*m.NextLoserMatchID] {
		target, err := a.load(*m.NextLoserMatchID)
		if err != nil {
			return err
		}
		if err := a.claim(target, *loser, utils.OrZero(m.NextLoserMatchSlot)); err != nil {
			return err
		}
	}

	if m.NextMatchID == nil && m.WinnerID != nil {
		return a.finish(m)
	}
	return nil
}

// deliver moves the winner of a freshly built bye into its target without settling anything.
// The builder only seats entrants whose routes avoid preserved matches, so the target is always open.
func (a *advancer) deliver(m *bracket.Match) error {
	if m.WinnerID == nil || m.NextMatchID == nil {
		return nil
	}
	target, err := a.load(*m.NextMatchID)
	if err != nil {
		return err
	}
	if target.HasEntrant(*m.WinnerID) {
		return nil
	}
	if target.IsCompleted() {
		return &PlacementError{EntrantID: *m.WinnerID, MatchID: target.ID, Reason: "match is already decided"}
	}
	return a.claim(target, *m.WinnerID, utils.OrZero(m.NextMatchSlot))
}

// seatLate puts a late entrant into a round-one match that canSeat approved.
func (a *advancer) seatLate(m *bracket.Match, entrantID uuid.UUID) error {
	if m.IsCompleted() {
		if err := a.reopen(m, entrantID); err != nil {
			return err
		}
	}
	slot, _ := m.FreeSlot()
	if err := a.claim(m, entrantID, slot); err != nil {
		return err
	}
	if m.EntrantCount() == 2 {
		return nil
	}
	return a.byeIfRoutable(m)
}

// canSeat reports whether a late entrant may take a slot in the round-one match m.
func (a *advancer) canSeat(m *bracket.Match) (bool, error) {
	if !m.IsCompleted() {
		_, free := m.FreeSlot()
		return free, nil
	}
	if !m.Structural() {
		return false, nil
	}

	ok, err := a.reopenable(m)
	if err != nil || !ok {
		return false, err
	}

	// A reopened bye gets played, so its loser needs somewhere to drop
	if m.IsBye && a.tournament.Format == bracket.DoubleElimination && m.NextLoserMatchID != nil {
		lb, err := a.load(*m.NextLoserMatchID)
		if err != nil {
			return false, err
		}
		return a.reopenable(lb)
	}
	return true, nil
}

// byeIfRoutable decides a round-one match holding a single entrant as a bye when its target can take
// the winner. Otherwise the match stays pending until someone else joins it.
func (a *advancer) byeIfRoutable(m *bracket.Match) error {
	winner := m.SoleEntrant()
	if winner == nil || m.NextMatchID == nil {
		return nil
	}

	target, err := a.load(*m.NextMatchID)
	if err != nil {
		return err
	}
	ok, err := a.accepts(target)
	if err != nil || !ok {
		return err
	}

	m.MarkBye(*winner, a.now)
	if err := a.save(m); err != nil {
		return err
	}
	return a.advance(m)
}

// settleAll runs after a bracket is written: it closes dead round-one matches if round two has started
// filling, then settles every open match in bracket order.
func (a *advancer) settleAll() error {
	if a.tournament.Format.IsElimination() {
		roundTwo, err := a.store.GetRoundTx(a.ctx, a.tx, a.tournament.ID, bracket.WinnerBracket, 2)
		if err != nil {
			return err
		}
		for _, m := range roundTwo {
			if m.EntrantCount() > 0 {
				if err := a.sweep(bracket.WinnerBracket, 1); err != nil {
					return err
				}
				break
			}
		}
	}

	matches, err := a.store.GetMatchesTx(a.ctx, a.tx, a.tournament.ID)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.IsCompleted() {
			continue
		}
		if err := a.settle(m.ID); err != nil {
			return err
		}
	}
	return nil
}
