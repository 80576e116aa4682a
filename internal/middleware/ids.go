package middleware

import (
	"context"
	"net/http"

	"github.com/AdamBeresnev/op-tournament-engine/internal/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ContextKey string

const ResourceIDKey ContextKey = "resourceID"

// ParseID rejects requests whose {param} is not a uuid and stores the parsed id in the context.
func ParseID(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, param)
			id, err := uuid.Parse(raw)
			if err != nil {
				httputil.BadRequest(w, "Invalid "+param, err)
				return
			}

			ctx := context.WithValue(r.Context(), ResourceIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(ResourceIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}
