package bracket

// Route is where an entrant goes when it leaves a match.
type Route struct {
	Target Key
	Slot   int
}

// WinnerRoute returns the forward link for the winner of the match at key.
// ok is false for the last match of the tournament (single elimination final, grand final).
func WinnerRoute(format Format, bracketSize int, key Key) (Route, bool) {
	switch key.Type {
	case WinnerBracket:
		if key.Round < WinnerRounds(bracketSize) {
			return Route{
				Target: Key{Type: WinnerBracket, Round: key.Round + 1, Position: key.Position / 2},
				Slot:   WinnerSlot(key.Position),
			}, true
		}
		if format == DoubleElimination {
			return Route{Target: Key{Type: GrandFinal, Round: 1}, Slot: Slot1}, true
		}
	case LoserBracket:
		if key.Round < LoserRounds(bracketSize) {
			return Route{
				Target: Key{Type: LoserBracket, Round: key.Round + 1, Position: key.Position / 2},
				Slot:   WinnerSlot(key.Position),
			}, true
		}
		return Route{Target: Key{Type: GrandFinal, Round: 1}, Slot: Slot2}, true
	}
	return Route{}, false
}

// LoserRoute maps a winner bracket match to the loser bracket slot its loser drops into.
// Winner round R drops into loser round 2R-1.
//
// Round 1 drops one-to-one into the first loser round, always into slot 1, so every first-round
// loser match is a pass-through and the second loser round pairs them by halved position. In later
// drop-in rounds the winners of the previous loser round take the first c slot indexes
// (index = 2*position + slot - 1, c = previous round's match count) and the droppers take the rest.
func LoserRoute(bracketSize int, round, position int) (Route, bool) {
	if round < 1 || round > WinnerRounds(bracketSize) || position < 0 || position >= WinnerRoundMatches(bracketSize, round) {
		return Route{}, false
	}

	target := 2*round - 1
	if round == 1 {
		return Route{Target: Key{Type: LoserBracket, Round: target, Position: position}, Slot: Slot1}, true
	}

	index := LoserRoundMatches(bracketSize, target-1) + position
	return Route{
		Target: Key{Type: LoserBracket, Round: target, Position: index / 2},
		Slot:   index%2 + 1,
	}, true
}

// LoserRoutes precomputes the drop table for every winner bracket match.
func LoserRoutes(bracketSize int) map[Key]Route {
	routes := make(map[Key]Route)
	for r := 1; r <= WinnerRounds(bracketSize); r++ {
		for p := 0; p < WinnerRoundMatches(bracketSize, r); p++ {
			route, _ := LoserRoute(bracketSize, r, p)
			routes[Key{Type: WinnerBracket, Round: r, Position: p}] = route
		}
	}
	return routes
}
