package bracket

import (
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournament-engine/internal/utils"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported bracket format")
	ErrTooFewEntrants    = errors.New("at least two eligible entrants are required")
	ErrNoRoom            = errors.New("not enough free round-one slots for the remaining entrants")
)

type BuildParams struct {
	TournamentID uuid.UUID
	Format       Format
	// Entrants still to be placed, already in draw order
	Entrants []Entrant
	// Every eligible entrant, placed or not. Sizes the grid.
	EligibleCount int
	// Decided matches kept from an earlier generation. Their keys are never recreated.
	Preserved []Match
	Now       time.Time
}

type Summary struct {
	BracketSize int                 `json:"bracket_size,omitempty"`
	RoundCounts map[BracketType]int `json:"round_counts"`
	MatchCounts map[BracketType]int `json:"match_counts"`
	Created     int                 `json:"created"`
	Preserved   int                 `json:"preserved"`
}

type Plan struct {
	// New matches, ordered so every link target comes before the matches pointing at it
	Matches []Match
	// Preserved matches whose forward links now point at the new matches
	Relinked []Match
	Summary  Summary
}

// Build lays out the full match graph for a format. It never touches storage, so callers can
// validate the whole plan before writing anything.
func Build(p BuildParams) (*Plan, error) {
	switch p.Format {
	case SingleElimination, DoubleElimination:
		if p.EligibleCount < 2 {
			return nil, ErrTooFewEntrants
		}
		return buildElimination(p)
	case RoundRobin:
		return buildRoundRobin(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, p.Format)
	}
}

// Topology lists every key of an elimination bracket, final rounds first so that link targets
// precede the matches that feed them.
func Topology(format Format, bracketSize int) []Key {
	var keys []Key

	if format == DoubleElimination {
		keys = append(keys, Key{Type: GrandFinal, Round: 1})
		for r := LoserRounds(bracketSize); r >= 1; r-- {
			for i := 0; i < LoserRoundMatches(bracketSize, r); i++ {
				keys = append(keys, Key{Type: LoserBracket, Round: r, Position: i})
			}
		}
	}

	// Significantly easier to start from the last round and work backwards
	for r := WinnerRounds(bracketSize); r >= 1; r-- {
		for i := 0; i < WinnerRoundMatches(bracketSize, r); i++ {
			keys = append(keys, Key{Type: WinnerBracket, Round: r, Position: i})
		}
	}

	return keys
}

func buildElimination(p BuildParams) (*Plan, error) {
	size := BracketSize(p.EligibleCount)

	preserved := make(map[Key]Match, len(p.Preserved))
	for _, m := range p.Preserved {
		preserved[m.Key()] = m
	}

	keys := Topology(p.Format, size)
	nodes := make(map[Key]*Match, len(keys))
	created := make([]*Match, 0, len(keys))
	kept := make([]*Match, 0, len(p.Preserved))

	for _, k := range keys {
		if m, ok := preserved[k]; ok {
			nodes[k] = &m
			kept = append(kept, &m)
			continue
		}
		m := &Match{
			ID:              uuid.New(),
			TournamentID:    p.TournamentID,
			BracketType:     k.Type,
			Round:           k.Round,
			BracketPosition: k.Position,
			Status:          MatchPending,
		}
		nodes[k] = m
		created = append(created, m)
	}

	for _, k := range keys {
		m := nodes[k]
		m.NextMatchID, m.NextMatchSlot = nil, nil
		m.NextLoserMatchID, m.NextLoserMatchSlot = nil, nil

		if route, ok := WinnerRoute(p.Format, size, k); ok {
			if target, ok := nodes[route.Target]; ok {
				m.NextMatchID = utils.Ptr(target.ID)
				m.NextMatchSlot = utils.Ptr(route.Slot)
			}
		}

		if p.Format == DoubleElimination && k.Type == WinnerBracket {
			if route, ok := LoserRoute(size, k.Round, k.Position); ok {
				if target, ok := nodes[route.Target]; ok {
					m.NextLoserMatchID = utils.Ptr(target.ID)
					m.NextLoserMatchSlot = utils.Ptr(route.Slot)
				}
			}
		}
	}

	// Draw index -> seat, skipping positions a preserved match already holds or that route into one
	placed := 0
	for _, seat := range seats(size) {
		if placed == len(p.Entrants) {
			break
		}
		k := Key{Type: WinnerBracket, Round: 1, Position: seat.position}
		if _, ok := preserved[k]; ok {
			continue
		}
		if feedsPreserved(p.Format, size, preserved, k) {
			continue
		}
		nodes[k].SetPlayer(seat.slot, utils.Ptr(p.Entrants[placed].ID))
		placed++
	}
	if placed < len(p.Entrants) {
		return nil, fmt.Errorf("%w: %d of %d entrants fit", ErrNoRoom, placed, len(p.Entrants))
	}

	// Round-one matches with a single entrant are decided on creation
	for _, m := range created {
		if m.BracketType != WinnerBracket || m.Round != 1 {
			continue
		}
		if winner := m.SoleEntrant(); winner != nil {
			m.MarkBye(*winner, p.Now)
		}
	}

	plan := &Plan{
		Matches: make([]Match, 0, len(created)),
		Summary: Summary{
			BracketSize: size,
			RoundCounts: map[BracketType]int{WinnerBracket: WinnerRounds(size)},
			MatchCounts: make(map[BracketType]int),
			Created:     len(created),
			Preserved:   len(p.Preserved),
		},
	}
	if p.Format == DoubleElimination {
		plan.Summary.RoundCounts[LoserBracket] = LoserRounds(size)
		plan.Summary.RoundCounts[GrandFinal] = 1
	}
	for _, k := range keys {
		plan.Summary.MatchCounts[k.Type]++
	}
	for _, m := range created {
		plan.Matches = append(plan.Matches, *m)
	}
	for _, m := range kept {
		if linksChanged(preserved[m.Key()], *m) {
			plan.Relinked = append(plan.Relinked, *m)
		}
	}

	return plan, nil
}

func buildRoundRobin(p BuildParams) (*Plan, error) {
	if len(p.Entrants) < 2 {
		return nil, ErrTooFewEntrants
	}

	played := make(map[[2]uuid.UUID]bool)
	occupied := make(map[int]bool)
	for _, m := range p.Preserved {
		occupied[m.BracketPosition] = true
		if m.Player1ID != nil && m.Player2ID != nil {
			played[pairKey(*m.Player1ID, *m.Player2ID)] = true
		}
	}

	var matches []Match
	position := 0
	for i := 0; i < len(p.Entrants); i++ {
		for j := i + 1; j < len(p.Entrants); j++ {
			a, b := p.Entrants[i].ID, p.Entrants[j].ID
			if played[pairKey(a, b)] {
				continue
			}
			for occupied[position] {
				position++
			}
			matches = append(matches, Match{
				ID:              uuid.New(),
				TournamentID:    p.TournamentID,
				BracketType:     WinnerBracket,
				Round:           1,
				BracketPosition: position,
				Player1ID:       utils.Ptr(a),
				Player2ID:       utils.Ptr(b),
				Status:          MatchPending,
			})
			position++
		}
	}

	return &Plan{
		Matches: matches,
		Summary: Summary{
			RoundCounts: map[BracketType]int{WinnerBracket: 1},
			MatchCounts: map[BracketType]int{WinnerBracket: len(matches) + len(p.Preserved)},
			Created:     len(matches),
			Preserved:   len(p.Preserved),
		},
	}, nil
}

// feedsPreserved reports whether anything seated at key could ever be routed into a preserved match.
// It follows winner links and, in double elimination, the loser drop of every winner bracket match
// on the way. A preserved match cannot take another entrant without its outcome changing.
func feedsPreserved(format Format, size int, preserved map[Key]Match, key Key) bool {
	seen := make(map[Key]bool)
	var walk func(k Key) bool
	walk = func(k Key) bool {
		if seen[k] {
			return false
		}
		seen[k] = true

		var next []Key
		if route, ok := WinnerRoute(format, size, k); ok {
			next = append(next, route.Target)
		}
		if format == DoubleElimination && k.Type == WinnerBracket {
			if route, ok := LoserRoute(size, k.Round, k.Position); ok {
				next = append(next, route.Target)
			}
		}

		for _, target := range next {
			if _, ok := preserved[target]; ok {
				return true
			}
			if walk(target) {
				return true
			}
		}
		return false
	}
	return walk(key)
}

func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

func linksChanged(before, after Match) bool {
	return !sameID(before.NextMatchID, after.NextMatchID) ||
		!sameInt(before.NextMatchSlot, after.NextMatchSlot) ||
		!sameID(before.NextLoserMatchID, after.NextLoserMatchID) ||
		!sameInt(before.NextLoserMatchSlot, after.NextLoserMatchSlot)
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
