package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const companyIDKey contextKey = "companyID"

// companyContext pulls the caller's company from the X-Company-ID header.
// Authentication happens upstream (API gateway or session layer); this
// service trusts the resolved identity and only enforces tenancy with it.
func companyContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-Company-ID"))
		if err != nil || id == uuid.Nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid X-Company-ID"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), companyIDKey, id)))
	})
}

func companyID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(companyIDKey).(uuid.UUID)
	return id
}
