package api

import (
	"context"
	"net/http"
)

// Greeter serves the root document.
type Greeter interface {
	Hello(ctx context.Context) (any, error)
}

// RootHandler handles root path requests.
type RootHandler struct {
	greeter Greeter
}

// NewRootHandler creates a new root handler.
func NewRootHandler(greeter Greeter) *RootHandler {
	return &RootHandler{greeter: greeter}
}

// HandleRoot handles GET / only; every other unmatched path is a 404.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	out, err := h.greeter.Hello(r.Context())
	if err != nil {
		storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
