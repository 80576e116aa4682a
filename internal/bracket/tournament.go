package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentStarted   TournamentStatus = "started"
	TournamentCompleted TournamentStatus = "completed"
)

type Format string

const (
	SingleElimination Format = "single"
	DoubleElimination Format = "double"
	RoundRobin        Format = "round_robin"
)

func (f Format) Valid() bool {
	switch f {
	case SingleElimination, DoubleElimination, RoundRobin:
		return true
	}
	return false
}

func (f Format) IsElimination() bool {
	return f == SingleElimination || f == DoubleElimination
}

type Ordering string

const (
	RandomDraw Ordering = "random_draw"
	SeededDraw Ordering = "seeded_draw"
)

func (o Ordering) Valid() bool {
	return o == RandomDraw || o == SeededDraw
}

type Tournament struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	Name      string           `db:"name" json:"name"`
	Format    Format           `db:"format" json:"format"`
	Ordering  Ordering         `db:"ordering" json:"ordering"`
	Status    TournamentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// Generated reports whether a bracket has been built for the tournament at least once.
func (t *Tournament) Generated() bool {
	return t.Format != ""
}
