package bracket

import "math"

// MinBracketSize is the smallest grid the engine builds, however few entrants there are.
const MinBracketSize = 16

// BracketSize rounds the entrant count up to a power of two, never below MinBracketSize.
// With 20 entrants it returns 32, with 5 it returns 16.
func BracketSize(entrantCount int) int {
	if entrantCount < 2 {
		entrantCount = 2
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(entrantCount)))
	size := int(math.Pow(2, log2))
	if size < MinBracketSize {
		return MinBracketSize
	}
	return size
}

func WinnerRounds(bracketSize int) int {
	return int(math.Log2(float64(bracketSize)))
}

// LoserRounds alternates drop-in and elimination rounds down to a single match.
func LoserRounds(bracketSize int) int {
	return (WinnerRounds(bracketSize)-1)*2 + 1
}

func WinnerRoundMatches(bracketSize, round int) int {
	return bracketSize >> round
}

// LoserRoundMatches gives the match count of loser round r. Round 1 mirrors winner round 1,
// even rounds halve the prior count and odd (drop-in) rounds keep it.
func LoserRoundMatches(bracketSize, round int) int {
	count := bracketSize / 2
	for r := 2; r <= round; r++ {
		if r%2 == 0 {
			count /= 2
		}
	}
	return count
}

// WinnerSlot is the slot a feeder at position p fills in the next round.
func WinnerSlot(position int) int {
	if position%2 == 0 {
		return Slot1
	}
	return Slot2
}
