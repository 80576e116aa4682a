package main

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/service"
	"github.com/AdamBeresnev/op-tournament-engine/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "sqlite3", driver)
	require.NoError(t, err)
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err)
	}

	tournamentStore := store.NewTournamentStore(database)
	venueStore := store.NewVenueStore(database)
	statsStore := store.NewStatsStore(database)

	srv := httptest.NewServer(newRouter(&handlers{
		tournaments: service.NewTournamentService(database, tournamentStore, venueStore, statsStore),
		entries:     service.NewEntryService(database, tournamentStore),
		brackets:    service.NewBracketService(database, tournamentStore, rand.New(rand.NewPCG(1, 2))),
		matches:     service.NewMatchService(database, tournamentStore, venueStore, statsStore),
	}))
	t.Cleanup(func() {
		srv.Close()
		database.Close()
	})
	return srv
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestTournamentLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var tournament bracket.Tournament
	status := do(t, http.MethodPost, srv.URL+"/tournaments", map[string]any{"name": "Club Night", "ordering": "seeded_draw"}, &tournament)
	require.Equal(t, http.StatusCreated, status)
	base := srv.URL + "/tournaments/" + tournament.ID.String()

	var entrants []bracket.Entrant
	status = do(t, http.MethodPost, base+"/entrants", map[string]any{
		"entrants": []map[string]any{{"name": "Ann", "seed": 1}, {"name": "Bob", "seed": 2}},
	}, &entrants)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, entrants, 2)

	var summary bracket.Summary
	status = do(t, http.MethodPost, base+"/generate", map[string]any{"format": "single"}, &summary)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 16, summary.BracketSize)

	var structure bracket.Structure
	status = do(t, http.MethodGet, base+"/structure", nil, &structure)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, structure.Winner, 4)
	final := structure.Winner[3].Matches[0]
	require.Equal(t, 2, final.EntrantCount())

	var played bracket.Match
	status = do(t, http.MethodPost, srv.URL+"/matches/"+final.ID.String()+"/result", map[string]any{
		"player1_score": 2,
		"player2_score": 0,
		"winner_id":     final.Player1ID.String(),
	}, &played)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, played.IsCompleted())

	status = do(t, http.MethodGet, base, nil, &tournament)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, bracket.TournamentCompleted, tournament.Status)

	// A finished match cannot be reported again
	status = do(t, http.MethodPost, srv.URL+"/matches/"+final.ID.String()+"/result", map[string]any{
		"player1_score": 0,
		"player2_score": 2,
		"winner_id":     final.Player2ID.String(),
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestErrorStatusCodes(t *testing.T) {
	srv := newTestServer(t)

	var tournament bracket.Tournament
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/tournaments", map[string]any{"name": "Cup"}, &tournament))
	base := srv.URL + "/tournaments/" + tournament.ID.String()

	tests := []struct {
		name   string
		method string
		url    string
		body   any
		want   int
	}{
		{name: "malformed id", method: http.MethodGet, url: srv.URL + "/tournaments/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown tournament", method: http.MethodGet, url: srv.URL + "/tournaments/00000000-0000-0000-0000-000000000001/structure", want: http.StatusNotFound},
		{name: "unknown field", method: http.MethodPost, url: srv.URL + "/tournaments", body: map[string]any{"title": "Cup"}, want: http.StatusBadRequest},
		{name: "empty name", method: http.MethodPost, url: srv.URL + "/tournaments", body: map[string]any{"name": ""}, want: http.StatusBadRequest},
		{name: "unknown format", method: http.MethodPost, url: base + "/generate", body: map[string]any{"format": "swiss"}, want: http.StatusBadRequest},
		{name: "too few entrants", method: http.MethodPost, url: base + "/generate", body: map[string]any{"format": "double"}, want: http.StatusConflict},
		{name: "regenerate before generate", method: http.MethodPost, url: base + "/regenerate", want: http.StatusConflict},
		{name: "unknown match", method: http.MethodGet, url: srv.URL + "/matches/00000000-0000-0000-0000-000000000001", want: http.StatusNotFound},
		{name: "unknown entrant stats", method: http.MethodGet, url: srv.URL + "/entrants/00000000-0000-0000-0000-000000000001/stats", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(t, tt.method, tt.url, tt.body, nil))
		})
	}
}

func TestRegenerateWithoutRoom(t *testing.T) {
	srv := newTestServer(t)

	var tournament bracket.Tournament
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/tournaments", map[string]any{"name": "Cup", "ordering": "seeded_draw"}, &tournament))
	base := srv.URL + "/tournaments/" + tournament.ID.String()

	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, base+"/entrants", map[string]any{
		"entrants": []map[string]any{{"name": "Ann", "seed": 1}, {"name": "Bob", "seed": 2}},
	}, nil))
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/generate", map[string]any{"format": "single"}, nil))

	// Every open seat leads into a bye that is already decided
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, base+"/entrants", map[string]any{
		"entrants": []map[string]any{{"name": "Cid"}},
	}, nil))

	var body map[string]string
	status := do(t, http.MethodPost, base+"/regenerate", nil, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "round-one slots")
}
