package service

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleEliminationAdvancement(t *testing.T) {
	env := newTestEnv(t)
	id, entrants := env.seedTournament(t, 4)
	env.generate(t, id, bracket.SingleElimination)

	semi1 := env.match(t, id, bracket.WinnerBracket, 3, 0)
	semi2 := env.match(t, id, bracket.WinnerBracket, 3, 1)
	require.Equal(t, entrants[0].ID, *semi1.Player1ID)
	require.Equal(t, entrants[3].ID, *semi1.Player2ID)
	require.Equal(t, entrants[1].ID, *semi2.Player1ID)
	require.Equal(t, entrants[2].ID, *semi2.Player2ID)

	updated := env.win(t, semi1, entrants[3].ID)
	assert.Equal(t, bracket.MatchCompleted, updated.Status)
	assert.Equal(t, entrants[3].ID, *updated.WinnerID)
	assert.NotNil(t, updated.CompletedAt)

	final := env.match(t, id, bracket.WinnerBracket, 4, 0)
	require.NotNil(t, final.Player1ID)
	assert.Equal(t, entrants[3].ID, *final.Player1ID)
	assert.Nil(t, final.Player2ID)
	assert.Equal(t, bracket.TournamentStarted, env.status(t, id))

	env.win(t, semi2, entrants[1].ID)

	final = env.match(t, id, bracket.WinnerBracket, 4, 0)
	require.NotNil(t, final.Player2ID)
	assert.Equal(t, entrants[1].ID, *final.Player2ID)

	env.win(t, final, entrants[1].ID)
	assert.Equal(t, bracket.TournamentCompleted, env.status(t, id))
}

func TestSubmitResultValidation(t *testing.T) {
	env := newTestEnv(t)
	id, _ := env.seedTournament(t, 4)
	env.generate(t, id, bracket.SingleElimination)

	semi := env.match(t, id, bracket.WinnerBracket, 3, 0)
	final := env.match(t, id, bracket.WinnerBracket, 4, 0)
	bye := env.match(t, id, bracket.WinnerBracket, 1, 0)

	tests := []struct {
		name    string
		matchID uuid.UUID
		input   ResultInput
		wantErr error
	}{
		{name: "negative score", matchID: semi.ID, input: ResultInput{Player1Score: -1}, wantErr: ErrInvalidScore},
		{name: "unknown match", matchID: uuid.New(), input: ResultInput{}, wantErr: ErrMatchNotFound},
		{name: "winner not in match", matchID: semi.ID, input: ResultInput{WinnerID: utils.Ptr(uuid.New())}, wantErr: ErrWinnerNotInMatch},
		{name: "match missing a player", matchID: final.ID, input: ResultInput{WinnerID: semi.Player1ID}, wantErr: ErrMatchNotReady},
		{name: "already completed", matchID: bye.ID, input: ResultInput{Player1Score: 1}, wantErr: ErrMatchCompleted},
		{name: "unknown table", matchID: semi.ID, input: ResultInput{TableNumber: utils.Ptr(9)}, wantErr: ErrTableNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.matches.SubmitResult(env.ctx, tt.matchID, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Nothing above may have changed the semifinal
	unchanged := env.match(t, id, bracket.WinnerBracket, 3, 0)
	assert.Equal(t, bracket.MatchPending, unchanged.Status)
	assert.Zero(t, unchanged.Player1Score)
	assert.Nil(t, unchanged.TableNumber)
}

func TestSubmitScoresWithoutWinner(t *testing.T) {
	env := newTestEnv(t)
	id, _ := env.seedTournament(t, 4)
	env.generate(t, id, bracket.SingleElimination)

	semi := env.match(t, id, bracket.WinnerBracket, 3, 0)
	updated, err := env.matches.SubmitResult(env.ctx, semi.ID, ResultInput{Player1Score: 1, Player2Score: 0})
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, updated.Status)
	assert.Nil(t, updated.WinnerID)

	stored := env.match(t, id, bracket.WinnerBracket, 3, 0)
	assert.Equal(t, 1, stored.Player1Score)
	assert.Equal(t, bracket.MatchInProgress, stored.Status)

	final := env.match(t, id, bracket.WinnerBracket, 4, 0)
	assert.Zero(t, final.EntrantCount())
}

func TestTablesAreExclusive(t *testing.T) {
	env := newTestEnv(t)
	id, entrants := env.seedTournament(t, 4)
	env.generate(t, id, bracket.SingleElimination)
	_, err := env.tournaments.AddTables(env.ctx, id, 2)
	require.NoError(t, err)

	semi1 := env.match(t, id, bracket.WinnerBracket, 3, 0)
	semi2 := env.match(t, id, bracket.WinnerBracket, 3, 1)

	updated, err := env.matches.SubmitResult(env.ctx, semi1.ID, ResultInput{TableNumber: utils.Ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, updated.Status)
	require.NotNil(t, updated.TableNumber)
	assert.Equal(t, 1, *updated.TableNumber)

	_, err = env.matches.SubmitResult(env.ctx, semi2.ID, ResultInput{TableNumber: utils.Ptr(1)})
	assert.ErrorIs(t, err, ErrTableInUse)

	_, err = env.matches.SubmitResult(env.ctx, semi2.ID, ResultInput{TableNumber: utils.Ptr(2)})
	require.NoError(t, err)

	// Completing a match frees its table
	semi1 = env.match(t, id, bracket.WinnerBracket, 3, 0)
	env.win(t, semi1, entrants[0].ID)

	tables, err := env.tournaments.GetTables(env.ctx, id)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.True(t, tables[0].Free())
	require.NotNil(t, tables[1].MatchID)
	assert.Equal(t, semi2.ID, *tables[1].MatchID)

	// Moving a match releases the table it held
	_, err = env.matches.SubmitResult(env.ctx, semi2.ID, ResultInput{TableNumber: utils.Ptr(1)})
	require.NoError(t, err)

	tables, err = env.tournaments.GetTables(env.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tables[0].MatchID)
	assert.Equal(t, semi2.ID, *tables[0].MatchID)
	assert.True(t, tables[1].Free())
}

func TestDoubleEliminationLoserDrops(t *testing.T) {
	env := newTestEnv(t)
	id, entrants := env.seedTournament(t, 4)
	env.generate(t, id, bracket.DoubleElimination)

	semi := env.match(t, id, bracket.WinnerBracket, 3, 0)
	env.win(t, semi, entrants[0].ID)

	require.NotNil(t, semi.NextLoserMatchID)
	drop, err := env.matches.GetMatch(env.ctx, *semi.NextLoserMatchID)
	require.NoError(t, err)
	assert.Equal(t, bracket.LoserBracket, drop.BracketType)
	assert.Equal(t, 5, drop.Round)
	assert.True(t, drop.HasEntrant(entrants[3].ID), "seed 4 drops into the loser bracket")

	winnerSide := env.match(t, id, bracket.WinnerBracket, 4, 0)
	assert.True(t, winnerSide.HasEntrant(entrants[0].ID))
}

func TestBracketReset(t *testing.T) {
	env := newTestEnv(t)
	id, entrants := env.seedTournament(t, 2)
	env.generate(t, id, bracket.DoubleElimination)
	top, bottom := entrants[0].ID, entrants[1].ID

	wbFinal := env.match(t, id, bracket.WinnerBracket, 4, 0)
	require.Equal(t, 2, wbFinal.EntrantCount())
	env.win(t, wbFinal, top)

	gameOne := env.match(t, id, bracket.GrandFinal, 1, 0)
	require.NotNil(t, gameOne.Player1ID)
	require.NotNil(t, gameOne.Player2ID)
	assert.Equal(t, top, *gameOne.Player1ID)
	assert.Equal(t, bottom, *gameOne.Player2ID)

	// The loser bracket champion wins game one, forcing a deciding match
	env.win(t, gameOne, bottom)
	assert.Equal(t, bracket.TournamentStarted, env.status(t, id))

	reset := env.match(t, id, bracket.GrandFinal, 2, 0)
	assert.Equal(t, bracket.MatchPending, reset.Status)
	assert.True(t, reset.HasEntrant(top))
	assert.True(t, reset.HasEntrant(bottom))

	gameOne = env.match(t, id, bracket.GrandFinal, 1, 0)
	require.NotNil(t, gameOne.NextMatchID)
	assert.Equal(t, reset.ID, *gameOne.NextMatchID)

	env.win(t, reset, bottom)
	assert.Equal(t, bracket.TournamentCompleted, env.status(t, id))

	stats, err := env.tournaments.GetEntrantStats(env.ctx, top)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 2, stats.Losses)
}

func TestGrandFinalWithoutReset(t *testing.T) {
	env := newTestEnv(t)
	id, entrants := env.seedTournament(t, 2)
	env.generate(t, id, bracket.DoubleElimination)

	env.win(t, env.match(t, id, bracket.WinnerBracket, 4, 0), entrants[0].ID)
	env.win(t, env.match(t, id, bracket.GrandFinal, 1, 0), entrants[0].ID)

	assert.Equal(t, bracket.TournamentCompleted, env.status(t, id))
	structure, err := env.tournaments.GetStructure(env.ctx, id)
	require.NoError(t, err)
	assert.Len(t, structure.GrandFinal, 1, "no reset match")
}

// nextPlayable returns the first open match holding two entrants, in bracket order.
func nextPlayable(t *testing.T, env *testEnv, id uuid.UUID) *bracket.Match {
	t.Helper()
	matches, err := env.store.GetMatches(env.ctx, id)
	require.NoError(t, err)
	for i := range matches {
		if !matches[i].IsCompleted() && matches[i].EntrantCount() == 2 {
			return &matches[i]
		}
	}
	return nil
}

func TestDoubleEliminationFullRun(t *testing.T) {
	for n := 2; n <= 20; n++ {
		t.Run(fmt.Sprintf("%d entrants", n), func(t *testing.T) {
			env := newTestEnv(t)
			id, entrants := env.seedTournament(t, n)
			env.generate(t, id, bracket.DoubleElimination)

			rng := rand.New(rand.NewPCG(uint64(n), 99))
			for played := 0; played < 4*n+4; played++ {
				m := nextPlayable(t, env, id)
				if m == nil {
					break
				}
				winner := *m.Player1ID
				if rng.IntN(2) == 1 {
					winner = *m.Player2ID
				}
				env.win(t, *m, winner)
			}

			require.Equal(t, bracket.TournamentCompleted, env.status(t, id))

			matches, err := env.store.GetMatches(env.ctx, id)
			require.NoError(t, err)
			losses := make(map[uuid.UUID]int)
			for _, m := range matches {
				if m.IsCompleted() && !m.IsBye && m.LoserID() != nil {
					losses[*m.LoserID()]++
				}
			}

			champions := 0
			for _, e := range entrants {
				stats, err := env.stats.GetStats(env.ctx, e.ID)
				require.NoError(t, err)
				assert.Equal(t, losses[e.ID], stats.Losses)

				if losses[e.ID] < 2 {
					champions++
					continue
				}
				assert.Equal(t, 2, losses[e.ID], "entrant %s", e.Name)
			}
			assert.Equal(t, 1, champions)
		})
	}
}

func TestRoundRobinCompletes(t *testing.T) {
	env := newTestEnv(t)
	id, _ := env.seedTournament(t, 3)
	env.generate(t, id, bracket.RoundRobin)

	for i := 0; i < 3; i++ {
		assert.Equal(t, bracket.TournamentStarted, env.status(t, id))
		m := nextPlayable(t, env, id)
		require.NotNil(t, m)
		env.win(t, *m, *m.Player1ID)
	}

	assert.Nil(t, nextPlayable(t, env, id))
	assert.Equal(t, bracket.TournamentCompleted, env.status(t, id))
}
