package bracket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByRound(t *testing.T) {
	tournament := &Tournament{ID: uuid.New(), Format: DoubleElimination}
	entrant := Entrant{ID: uuid.New(), Name: "Entrant 1"}

	matches := []Match{
		{ID: uuid.New(), BracketType: WinnerBracket, Round: 2, BracketPosition: 1},
		{ID: uuid.New(), BracketType: LoserBracket, Round: 1, BracketPosition: 0},
		{ID: uuid.New(), BracketType: WinnerBracket, Round: 1, BracketPosition: 1},
		{ID: uuid.New(), BracketType: GrandFinal, Round: 1, BracketPosition: 0},
		{ID: uuid.New(), BracketType: WinnerBracket, Round: 2, BracketPosition: 0},
		{ID: uuid.New(), BracketType: WinnerBracket, Round: 1, BracketPosition: 0},
	}

	s := GroupByRound(tournament, []Entrant{entrant}, matches)

	require.Len(t, s.Winner, 2)
	assert.Equal(t, 1, s.Winner[0].Number)
	assert.Equal(t, 2, s.Winner[1].Number)
	for _, round := range s.Winner {
		require.Len(t, round.Matches, 2)
		assert.Equal(t, 0, round.Matches[0].BracketPosition)
		assert.Equal(t, 1, round.Matches[1].BracketPosition)
	}

	require.Len(t, s.Loser, 1)
	require.Len(t, s.GrandFinal, 1)
	assert.Equal(t, "Entrant 1", s.Entrants[entrant.ID].Name)
}

func TestGroupByRoundSingleElimination(t *testing.T) {
	s := GroupByRound(&Tournament{}, nil, []Match{{BracketType: WinnerBracket, Round: 1}})

	assert.Len(t, s.Winner, 1)
	assert.Nil(t, s.Loser)
	assert.Nil(t, s.GrandFinal)
}
