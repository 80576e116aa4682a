package bracket

import "github.com/google/uuid"

// Table is a venue table. A table is held by at most one match at a time.
type Table struct {
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	TableNumber  int        `db:"table_number" json:"table_number"`
	MatchID      *uuid.UUID `db:"match_id" json:"match_id,omitempty"`
}

func (t *Table) Free() bool {
	return t.MatchID == nil
}
