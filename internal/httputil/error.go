package httputil

import (
	"log/slog"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	warn("bad request", msg, err)
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	warn("not found", msg, err)
	WriteJSON(w, http.StatusNotFound, errorBody{Error: msg})
}

// Conflict is for requests that are well formed but clash with the current bracket state
func Conflict(w http.ResponseWriter, msg string, err error) {
	warn("conflict", msg, err)
	WriteJSON(w, http.StatusConflict, errorBody{Error: msg})
}

func warn(kind, msg string, err error) {
	if err != nil {
		slog.Warn(kind, "message", msg, "error", err)
	} else {
		slog.Warn(kind, "message", msg)
	}
}
