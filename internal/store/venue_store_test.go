package store

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	venues := NewVenueStore(db)
	ctx := context.Background()

	tournament, _ := seedTournament(t, db, store, 2)
	first := bracket.Match{ID: uuid.New(), TournamentID: tournament.ID, BracketType: bracket.WinnerBracket, Round: 1, BracketPosition: 0, Status: bracket.MatchPending}
	second := bracket.Match{ID: uuid.New(), TournamentID: tournament.ID, BracketType: bracket.WinnerBracket, Round: 1, BracketPosition: 1, Status: bracket.MatchPending}

	withTx(t, db, func(tx *sqlx.Tx) {
		require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{first, second}))
		require.NoError(t, venues.CreateTables(ctx, tx, []bracket.Table{
			{TournamentID: tournament.ID, TableNumber: 1},
			{TournamentID: tournament.ID, TableNumber: 2},
		}))

		ok, err := venues.ClaimTableTx(ctx, tx, tournament.ID, 1, first.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = venues.ClaimTableTx(ctx, tx, tournament.ID, 1, second.ID)
		require.NoError(t, err)
		assert.False(t, ok, "a table holds one match")

		ok, err = venues.ClaimTableTx(ctx, tx, tournament.ID, 9, second.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		max, err := venues.MaxTableNumberTx(ctx, tx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, max)
	})

	tables, err := venues.GetTables(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, first.ID, *tables[0].MatchID)
	assert.True(t, tables[1].Free())

	withTx(t, db, func(tx *sqlx.Tx) {
		require.NoError(t, venues.ReleaseTablesTx(ctx, tx, first.ID))
		table, err := venues.GetTableTx(ctx, tx, tournament.ID, 1)
		require.NoError(t, err)
		assert.True(t, table.Free())
	})
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	stats := NewStatsStore(db)
	ctx := context.Background()

	_, entrants := seedTournament(t, db, store, 2)

	empty, err := stats.GetStats(ctx, entrants[0].ID)
	require.NoError(t, err)
	assert.Zero(t, empty.Wins)
	assert.Zero(t, empty.Losses)

	withTx(t, db, func(tx *sqlx.Tx) {
		require.NoError(t, stats.RecordWinTx(ctx, tx, entrants[0].ID))
		require.NoError(t, stats.RecordWinTx(ctx, tx, entrants[0].ID))
		require.NoError(t, stats.RecordLossTx(ctx, tx, entrants[0].ID))
		require.NoError(t, stats.RecordLossTx(ctx, tx, entrants[1].ID))
	})

	s, err := stats.GetStats(ctx, entrants[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)

	s, err = stats.GetStats(ctx, entrants[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Wins)
	assert.Equal(t, 1, s.Losses)
}
