package http

import (
	"context"
	"net/http"
)

// handleList creates a handler that lists resources and returns JSON.
// A nil slice is written as [].
func handleList[T any](listFn func(ctx context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := listFn(r.Context())
		if err != nil {
			writeInternalError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleGet creates a handler that loads a resource by URL param "id" and
// writes view(resource).
func handleGet[T any, V any](getFn func(ctx context.Context, id string) (*T, error), view func(*T) V, notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context(), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, view(item))
	}
}
