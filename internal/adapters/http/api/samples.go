package api

import (
	"context"
	"net/http"

	"github.com/okian/obdstream/internal/domain/model"
)

// SamplesDependencies defines the store operations behind /samples.
type SamplesDependencies interface {
	SelectAll(ctx context.Context) ([]model.Sample, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// SamplesHandler handles read-all and delete-all requests.
type SamplesHandler struct {
	deps SamplesDependencies
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(deps SamplesDependencies) *SamplesHandler {
	return &SamplesHandler{deps: deps}
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// HandleSamples handles GET /samples (every row, insertion order) and
// DELETE /samples (remove every row).
func (h *SamplesHandler) HandleSamples(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		samples, err := h.deps.SelectAll(r.Context())
		if err != nil {
			storageError(w, err)
			return
		}
		if samples == nil {
			samples = []model.Sample{}
		}
		writeJSON(w, http.StatusOK, samples)
	case http.MethodDelete:
		n, err := h.deps.DeleteAll(r.Context())
		if err != nil {
			storageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
	default:
		methodNotAllowed(w, "GET, DELETE")
	}
}
