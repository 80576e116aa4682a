package bracket

import "sort"

// Shuffler drives random draws. *math/rand/v2.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// OrderEntrants returns a new slice in draw order. Seeded draws sort ascending by seed with unseeded
// entrants last, keeping registration order among equals.
func OrderEntrants(entrants []Entrant, ordering Ordering, rng Shuffler) []Entrant {
	ordered := make([]Entrant, len(entrants))
	copy(ordered, entrants)

	switch ordering {
	case SeededDraw:
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := ordered[i].Seed, ordered[j].Seed
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return *a < *b
		})
	case RandomDraw:
		rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	return ordered
}

// SeedLayout returns, for each round-one position, the pair of draw indexes that meet there.
// Index 0 meets the last index, so with fewer entrants than slots the top of the draw gets the byes.
func SeedLayout(bracketSize int) [][2]int {
	if bracketSize < 2 {
		return [][2]int{}
	}

	// Each doubling puts every index next to its mirror in the larger field
	order := []int{0}
	for len(order) < bracketSize {
		width := 2 * len(order)
		expanded := make([]int, 0, width)
		for _, idx := range order {
			expanded = append(expanded, idx, width-1-idx)
		}
		order = expanded
	}

	pairs := make([][2]int, len(order)/2)
	for pos := range pairs {
		pairs[pos] = [2]int{order[2*pos], order[2*pos+1]}
	}
	return pairs
}

type seatRef struct {
	position int
	slot     int
}

// seats inverts SeedLayout: draw index -> (position, slot).
func seats(bracketSize int) []seatRef {
	out := make([]seatRef, bracketSize)
	for pos, pair := range SeedLayout(bracketSize) {
		out[pair[0]] = seatRef{position: pos, slot: Slot1}
		out[pair[1]] = seatRef{position: pos, slot: Slot2}
	}
	return out
}
