package bracket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinnerRoute(t *testing.T) {
	testCases := []struct {
		name     string
		format   Format
		key      Key
		expected Route
		ok       bool
	}{
		{
			name:     "even position takes slot 1",
			format:   SingleElimination,
			key:      Key{Type: WinnerBracket, Round: 1, Position: 4},
			expected: Route{Target: Key{Type: WinnerBracket, Round: 2, Position: 2}, Slot: Slot1},
			ok:       true,
		},
		{
			name:     "odd position takes slot 2",
			format:   SingleElimination,
			key:      Key{Type: WinnerBracket, Round: 2, Position: 3},
			expected: Route{Target: Key{Type: WinnerBracket, Round: 3, Position: 1}, Slot: Slot2},
			ok:       true,
		},
		{
			name:   "single elimination final has no route",
			format: SingleElimination,
			key:    Key{Type: WinnerBracket, Round: 4, Position: 0},
			ok:     false,
		},
		{
			name:     "winner final feeds grand final slot 1",
			format:   DoubleElimination,
			key:      Key{Type: WinnerBracket, Round: 4, Position: 0},
			expected: Route{Target: Key{Type: GrandFinal, Round: 1}, Slot: Slot1},
			ok:       true,
		},
		{
			name:     "loser final feeds grand final slot 2",
			format:   DoubleElimination,
			key:      Key{Type: LoserBracket, Round: 7, Position: 0},
			expected: Route{Target: Key{Type: GrandFinal, Round: 1}, Slot: Slot2},
			ok:       true,
		},
		{
			name:     "loser round halves position",
			format:   DoubleElimination,
			key:      Key{Type: LoserBracket, Round: 1, Position: 5},
			expected: Route{Target: Key{Type: LoserBracket, Round: 2, Position: 2}, Slot: Slot2},
			ok:       true,
		},
		{
			name:   "grand final has no route",
			format: DoubleElimination,
			key:    Key{Type: GrandFinal, Round: 1},
			ok:     false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			route, ok := WinnerRoute(tc.format, 16, tc.key)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, route)
			}
		})
	}
}

func TestLoserRouteFirstRoundIsOneToOne(t *testing.T) {
	for p := 0; p < 8; p++ {
		route, ok := LoserRoute(16, 1, p)
		require.True(t, ok)
		assert.Equal(t, Key{Type: LoserBracket, Round: 1, Position: p}, route.Target)
		assert.Equal(t, Slot1, route.Slot)
	}
}

func TestLoserRouteOutOfRange(t *testing.T) {
	_, ok := LoserRoute(16, 0, 0)
	assert.False(t, ok)
	_, ok = LoserRoute(16, 5, 0)
	assert.False(t, ok)
	_, ok = LoserRoute(16, 2, 4)
	assert.False(t, ok)
}

// Every loser bracket slot past the first round is fed by exactly one source:
// either the previous loser round or a winner bracket drop.
func TestLoserRoutesFillLoserBracketExactly(t *testing.T) {
	for _, size := range []int{16, 32, 64} {
		type slotRef struct {
			key  Key
			slot int
		}
		fed := make(map[slotRef]int)

		for from, route := range LoserRoutes(size) {
			require.Equal(t, LoserBracket, route.Target.Type)
			require.Equal(t, 2*from.Round-1, route.Target.Round, "size=%d from=%+v", size, from)
			require.Less(t, route.Target.Position, LoserRoundMatches(size, route.Target.Round))
			fed[slotRef{route.Target, route.Slot}]++
		}

		for r := 1; r < LoserRounds(size); r++ {
			for p := 0; p < LoserRoundMatches(size, r); p++ {
				route, ok := WinnerRoute(DoubleElimination, size, Key{Type: LoserBracket, Round: r, Position: p})
				require.True(t, ok)
				fed[slotRef{route.Target, route.Slot}]++
			}
		}

		for ref, n := range fed {
			assert.Equal(t, 1, n, "size=%d slot %+v fed %d times", size, ref, n)
		}

		for r := 2; r <= LoserRounds(size); r++ {
			for p := 0; p < LoserRoundMatches(size, r); p++ {
				k := Key{Type: LoserBracket, Round: r, Position: p}
				assert.Equal(t, 1, fed[slotRef{k, Slot1}], "size=%d %+v slot 1", size, k)
				assert.Equal(t, 1, fed[slotRef{k, Slot2}], "size=%d %+v slot 2", size, k)
			}
		}

		for p := 0; p < LoserRoundMatches(size, 1); p++ {
			k := Key{Type: LoserBracket, Round: 1, Position: p}
			assert.Equal(t, 1, fed[slotRef{k, Slot1}])
			assert.Zero(t, fed[slotRef{k, Slot2}])
		}
	}
}
