package bracket

import (
	"sort"

	"github.com/google/uuid"
)

type Round struct {
	Number  int     `json:"number"`
	Matches []Match `json:"matches"`
}

type Structure struct {
	Tournament *Tournament            `json:"tournament"`
	Entrants   map[uuid.UUID]Entrant `json:"entrants"`
	Winner     []Round               `json:"winner"`
	Loser      []Round               `json:"loser,omitempty"`
	GrandFinal []Round               `json:"grand_final,omitempty"`
}

// GroupByRound splits matches per bracket type into rounds ordered by number, each ordered by position.
func GroupByRound(tournament *Tournament, entrants []Entrant, matches []Match) *Structure {
	entrantMap := make(map[uuid.UUID]Entrant)
	for _, e := range entrants {
		entrantMap[e.ID] = e
	}

	byType := map[BracketType]map[int][]Match{
		WinnerBracket: {},
		LoserBracket:  {},
		GrandFinal:    {},
	}
	for _, m := range matches {
		rounds, ok := byType[m.BracketType]
		if !ok {
			continue
		}
		rounds[m.Round] = append(rounds[m.Round], m)
	}

	return &Structure{
		Tournament: tournament,
		Entrants:   entrantMap,
		Winner:     sortRounds(byType[WinnerBracket]),
		Loser:      sortRounds(byType[LoserBracket]),
		GrandFinal: sortRounds(byType[GrandFinal]),
	}
}

func sortRounds(rounds map[int][]Match) []Round {
	if len(rounds) == 0 {
		return nil
	}

	roundNums := make([]int, 0, len(rounds))
	for r := range rounds {
		roundNums = append(roundNums, r)
	}
	sort.Ints(roundNums)

	out := make([]Round, 0, len(roundNums))
	for _, r := range roundNums {
		ms := rounds[r]
		sort.Slice(ms, func(i, j int) bool {
			return ms[i].BracketPosition < ms[j].BracketPosition
		})
		out = append(out, Round{Number: r, Matches: ms})
	}
	return out
}
