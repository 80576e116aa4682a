package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrEntrantNotFound      = errors.New("entrant not found")
	ErrMatchNotFound        = errors.New("match not found")
	ErrTableNotFound        = errors.New("table not found")
	ErrTableInUse           = errors.New("table is held by another match")
	ErrBracketNotGenerated  = errors.New("bracket has not been generated")
	ErrUnsupportedOrdering  = errors.New("unsupported ordering")
	ErrFormatChange         = errors.New("format cannot change while completed matches are preserved")
	ErrEntrantNotEligible   = errors.New("entrant is not eligible")
	ErrEntrantAlreadyPlaced = errors.New("entrant is already placed in the bracket")
	ErrMatchCompleted       = errors.New("match is already completed")
	ErrMatchNotReady        = errors.New("match needs two entrants before a winner can be reported")
	ErrWinnerNotInMatch     = errors.New("winner is not part of this match")
	ErrInvalidScore         = errors.New("scores must not be negative")
	ErrInvalidInput         = errors.New("invalid input")
	ErrCapacity             = errors.New("bracket is at capacity")
	ErrPreservedChanged     = errors.New("regeneration would change a preserved match")
)

// CapacityError means the entrant cannot join without regenerating the bracket.
type CapacityError struct {
	BracketSize int
	Placed      int
	// Set when slots are still free but none of them can be routed forward
	Reason string
}

func (e *CapacityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no round-one position can take a new entrant (%s, %d of %d slots used), regenerate the bracket to add entrants",
			e.Reason, e.Placed, e.BracketSize)
	}
	return fmt.Sprintf("bracket is at capacity (%d of %d slots used), regenerate the bracket to add entrants", e.Placed, e.BracketSize)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}

// PlacementError means an entrant could not be written into the match it was routed to.
type PlacementError struct {
	EntrantID uuid.UUID
	MatchID   uuid.UUID
	Reason    string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("cannot place entrant %s into match %s: %s", e.EntrantID, e.MatchID, e.Reason)
}
