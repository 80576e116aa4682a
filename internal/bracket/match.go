package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type BracketType string

const (
	WinnerBracket BracketType = "winner"
	LoserBracket  BracketType = "loser"
	GrandFinal    BracketType = "grand_final"
)

// Slots inside a match. Routing links store one of these.
const (
	Slot1 = 1
	Slot2 = 2
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the bracket, unique per tournament
	BracketType     BracketType `db:"bracket_type" json:"bracket_type"`
	Round           int         `db:"round" json:"round"`
	BracketPosition int         `db:"bracket_position" json:"bracket_position"`

	Player1ID    *uuid.UUID `db:"player1_id" json:"player1_id,omitempty"`
	Player2ID    *uuid.UUID `db:"player2_id" json:"player2_id,omitempty"`
	Player1Score int        `db:"player1_score" json:"player1_score"`
	Player2Score int        `db:"player2_score" json:"player2_score"`

	WinnerID    *uuid.UUID  `db:"winner_id" json:"winner_id,omitempty"`
	Status      MatchStatus `db:"status" json:"status"`
	IsBye       bool        `db:"is_bye" json:"is_bye"`
	TableNumber *int        `db:"table_number" json:"table_number,omitempty"`
	CompletedAt *time.Time  `db:"completed_at" json:"completed_at,omitempty"`

	NextMatchID   *uuid.UUID `db:"next_match_id" json:"next_match_id,omitempty"`
	NextMatchSlot *int       `db:"next_match_slot" json:"next_match_slot,omitempty"`

	NextLoserMatchID   *uuid.UUID `db:"next_loser_match_id" json:"next_loser_match_id,omitempty"`
	NextLoserMatchSlot *int       `db:"next_loser_match_slot" json:"next_loser_match_slot,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Key identifies a match by its place in the topology.
type Key struct {
	Type     BracketType
	Round    int
	Position int
}

func (m *Match) Key() Key {
	return Key{Type: m.BracketType, Round: m.Round, Position: m.BracketPosition}
}

func (m *Match) Player(slot int) *uuid.UUID {
	if slot == Slot1 {
		return m.Player1ID
	}
	return m.Player2ID
}

func (m *Match) SetPlayer(slot int, id *uuid.UUID) {
	if slot == Slot1 {
		m.Player1ID = id
	} else {
		m.Player2ID = id
	}
}

// EntrantCount is the number of filled slots.
func (m *Match) EntrantCount() int {
	n := 0
	if m.Player1ID != nil {
		n++
	}
	if m.Player2ID != nil {
		n++
	}
	return n
}

// SoleEntrant returns the only assigned entrant, or nil when the match has zero or two.
func (m *Match) SoleEntrant() *uuid.UUID {
	switch {
	case m.Player1ID != nil && m.Player2ID == nil:
		return m.Player1ID
	case m.Player1ID == nil && m.Player2ID != nil:
		return m.Player2ID
	}
	return nil
}

func (m *Match) FreeSlot() (int, bool) {
	if m.Player1ID == nil {
		return Slot1, true
	}
	if m.Player2ID == nil {
		return Slot2, true
	}
	return 0, false
}

func (m *Match) HasEntrant(id uuid.UUID) bool {
	return (m.Player1ID != nil && *m.Player1ID == id) || (m.Player2ID != nil && *m.Player2ID == id)
}

// SlotOf returns the slot holding the entrant, or 0.
func (m *Match) SlotOf(id uuid.UUID) int {
	if m.Player1ID != nil && *m.Player1ID == id {
		return Slot1
	}
	if m.Player2ID != nil && *m.Player2ID == id {
		return Slot2
	}
	return 0
}

// LoserID is the player that did not win a decided two-player match.
func (m *Match) LoserID() *uuid.UUID {
	if m.WinnerID == nil || m.Player1ID == nil || m.Player2ID == nil {
		return nil
	}
	if *m.Player1ID == *m.WinnerID {
		return m.Player2ID
	}
	return m.Player1ID
}

func (m *Match) IsCompleted() bool {
	return m.Status == MatchCompleted
}

// Decided is a completed match with a winner. Regeneration preserves exactly these.
func (m *Match) Decided() bool {
	return m.Status == MatchCompleted && m.WinnerID != nil
}

// Structural reports whether the match was completed by the engine rather than played:
// a bye, or a placeholder that no entrant can reach.
func (m *Match) Structural() bool {
	return m.Status == MatchCompleted && (m.IsBye || m.WinnerID == nil)
}

// MarkBye decides the match for its only entrant without play.
func (m *Match) MarkBye(winner uuid.UUID, now time.Time) {
	m.Status = MatchCompleted
	m.WinnerID = &winner
	m.IsBye = true
	m.CompletedAt = &now
}

// MarkEmpty closes a match nobody can reach: completed, no winner, zero scores.
func (m *Match) MarkEmpty(now time.Time) {
	m.Status = MatchCompleted
	m.WinnerID = nil
	m.IsBye = false
	m.Player1Score, m.Player2Score = 0, 0
	m.CompletedAt = &now
}

// Reopen returns a structurally decided match to pending. Players are left as they are.
func (m *Match) Reopen() {
	m.Status = MatchPending
	m.WinnerID = nil
	m.IsBye = false
	m.Player1Score, m.Player2Score = 0, 0
	m.CompletedAt = nil
}

// SameOutcome compares everything a result decides: entrants, scores, winner, status and completion time.
// Routing links are not part of the outcome.
func (m *Match) SameOutcome(o *Match) bool {
	if m.CompletedAt == nil || o.CompletedAt == nil {
		if m.CompletedAt != o.CompletedAt {
			return false
		}
	} else if !m.CompletedAt.Equal(*o.CompletedAt) {
		return false
	}
	return m.Status == o.Status && m.IsBye == o.IsBye &&
		m.Player1Score == o.Player1Score && m.Player2Score == o.Player2Score &&
		sameID(m.Player1ID, o.Player1ID) && sameID(m.Player2ID, o.Player2ID) && sameID(m.WinnerID, o.WinnerID)
}
