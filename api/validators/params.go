package validators

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
	"github.com/mallhive/mallhive-backend/pkg/pagination"
)

// UUIDParam parses a chi route parameter as a UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).
			WithDetails(map[string]any{name: raw})
	}
	return id, nil
}

// PaginationParams reads the limit and cursor query parameters.
func PaginationParams(r *http.Request) pagination.Params {
	query := r.URL.Query()
	return pagination.Params{
		Limit:  pagination.ParseLimit(query.Get("limit")),
		Cursor: query.Get("cursor"),
	}
}
