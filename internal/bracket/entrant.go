package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Entrant struct {
	ID                uuid.UUID `db:"id" json:"id"`
	TournamentID      uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name              string    `db:"name" json:"name"`
	Seed              *int      `db:"seed" json:"seed,omitempty"`
	Eligible          bool      `db:"eligible" json:"eligible"`
	RegistrationOrder int       `db:"registration_order" json:"registration_order"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

type Stats struct {
	EntrantID uuid.UUID `db:"entrant_id" json:"entrant_id"`
	Wins      int       `db:"wins" json:"wins"`
	Losses    int       `db:"losses" json:"losses"`
}
