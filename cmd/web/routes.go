package main

import (
	"errors"
	"net/http"

	"github.com/AdamBeresnev/op-tournament-engine/internal/bracket"
	"github.com/AdamBeresnev/op-tournament-engine/internal/httputil"
	"github.com/AdamBeresnev/op-tournament-engine/internal/middleware"
	"github.com/AdamBeresnev/op-tournament-engine/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type handlers struct {
	tournaments *service.TournamentService
	entries     *service.EntryService
	brackets    *service.BracketService
	matches     *service.MatchService
}

func newRouter(h *handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Post("/tournaments", h.createTournament)

	r.Route("/tournaments/{id}", func(r chi.Router) {
		r.Use(middleware.ParseID("id"))

		r.Get("/", h.getTournament)
		r.Get("/structure", h.getStructure)
		r.Post("/entrants", h.registerEntrants)
		r.Post("/late-entrants", h.addLateEntrant)
		r.Get("/tables", h.getTables)
		r.Post("/tables", h.addTables)
		r.Post("/generate", h.generate)
		r.Post("/regenerate", h.regenerate)
	})

	r.Route("/entrants/{id}", func(r chi.Router) {
		r.Use(middleware.ParseID("id"))

		r.Patch("/", h.setEligibility)
		r.Get("/stats", h.getEntrantStats)
	})

	r.Route("/matches/{id}", func(r chi.Router) {
		r.Use(middleware.ParseID("id"))

		r.Get("/", h.getMatch)
		r.Post("/result", h.submitResult)
	})

	return r
}

func pathID(r *http.Request) uuid.UUID {
	id, _ := middleware.GetIDFromContext(r.Context())
	return id
}

// writeServiceError maps service errors onto status codes. Anything unknown is a 500.
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	var capacity *service.CapacityError
	var placement *service.PlacementError

	switch {
	case errors.Is(err, service.ErrTournamentNotFound),
		errors.Is(err, service.ErrEntrantNotFound),
		errors.Is(err, service.ErrMatchNotFound),
		errors.Is(err, service.ErrTableNotFound):
		httputil.NotFound(w, err.Error(), err)
	case errors.As(err, &capacity), errors.As(err, &placement),
		errors.Is(err, service.ErrTableInUse),
		errors.Is(err, service.ErrMatchCompleted),
		errors.Is(err, service.ErrMatchNotReady),
		errors.Is(err, service.ErrBracketNotGenerated),
		errors.Is(err, service.ErrFormatChange),
		errors.Is(err, service.ErrEntrantNotEligible),
		errors.Is(err, service.ErrEntrantAlreadyPlaced),
		errors.Is(err, bracket.ErrTooFewEntrants),
		errors.Is(err, bracket.ErrNoRoom):
		httputil.Conflict(w, err.Error(), err)
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrWinnerNotInMatch),
		errors.Is(err, service.ErrUnsupportedOrdering),
		errors.Is(err, bracket.ErrUnsupportedFormat):
		httputil.BadRequest(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, msg, err)
	}
}

type createTournamentRequest struct {
	Name     string           `json:"name"`
	Ordering bracket.Ordering `json:"ordering"`
}

func (h *handlers) createTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	tournament, err := h.tournaments.CreateTournament(r.Context(), req.Name, req.Ordering)
	if err != nil {
		writeServiceError(w, "Failed to create tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tournament)
}

func (h *handlers) getTournament(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournaments.GetTournament(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, "Failed to get tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournament)
}

func (h *handlers) getStructure(w http.ResponseWriter, r *http.Request) {
	structure, err := h.tournaments.GetStructure(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, "Failed to get bracket structure", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, structure)
}

type registerEntrantsRequest struct {
	Entrants []service.EntrantInput `json:"entrants"`
}

func (h *handlers) registerEntrants(w http.ResponseWriter, r *http.Request) {
	var req registerEntrantsRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	entrants, err := h.entries.RegisterEntrants(r.Context(), pathID(r), req.Entrants)
	if err != nil {
		writeServiceError(w, "Failed to register entrants", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entrants)
}

type lateEntrantRequest struct {
	EntrantID uuid.UUID `json:"entrant_id"`
}

func (h *handlers) addLateEntrant(w http.ResponseWriter, r *http.Request) {
	var req lateEntrantRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	entry, err := h.entries.AddLateEntrant(r.Context(), pathID(r), req.EntrantID)
	if err != nil {
		writeServiceError(w, "Failed to add late entrant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

type eligibilityRequest struct {
	Eligible bool `json:"eligible"`
}

func (h *handlers) setEligibility(w http.ResponseWriter, r *http.Request) {
	var req eligibilityRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	entrant, err := h.entries.SetEligibility(r.Context(), pathID(r), req.Eligible)
	if err != nil {
		writeServiceError(w, "Failed to update entrant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entrant)
}

func (h *handlers) getEntrantStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tournaments.GetEntrantStats(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, "Failed to get entrant stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *handlers) getTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tournaments.GetTables(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, "Failed to get tables", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tables)
}

type addTablesRequest struct {
	Count int `json:"count"`
}

func (h *handlers) addTables(w http.ResponseWriter, r *http.Request) {
	var req addTablesRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	tables, err := h.tournaments.AddTables(r.Context(), pathID(r), req.Count)
	if err != nil {
		writeServiceError(w, "Failed to add tables", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tables)
}

type generateRequest struct {
	Format            bracket.Format   `json:"format"`
	Ordering          bracket.Ordering `json:"ordering"`
	PreserveCompleted bool             `json:"preserve_completed"`
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	summary, err := h.brackets.Generate(r.Context(), pathID(r), req.Format, req.Ordering, req.PreserveCompleted)
	if err != nil {
		writeServiceError(w, "Failed to generate bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *handlers) regenerate(w http.ResponseWriter, r *http.Request) {
	summary, err := h.brackets.Regenerate(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, "Failed to regenerate bracket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *handlers) getMatch(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.GetMatch(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, "Failed to get match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (h *handlers) submitResult(w http.ResponseWriter, r *http.Request) {
	var req service.ResultInput
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	match, err := h.matches.SubmitResult(r.Context(), pathID(r), req)
	if err != nil {
		writeServiceError(w, "Failed to submit result", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}
