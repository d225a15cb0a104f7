package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/pantry/internal/service"
)

// EntityHandler serves the read-only JSON projection of one entity to any
// signed-in user.
type EntityHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewEntityHandler(catalog *service.CatalogService, logger *slog.Logger) *EntityHandler {
	return &EntityHandler{catalog: catalog, logger: logger}
}

// HandleGet returns the projection of the entity named by the URL.
//
// HTTP: GET /api/{kind}/{id}
//
// Related entities are embedded by projection, so a recipe response carries
// its ingredients, and each ingredient its category and allergies.
func (h *EntityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	e, err := h.catalog.Get(r.Context(), kind, id)
	if err != nil {
		h.logger.Warn("entity lookup failed",
			slog.String("kind", string(kind)),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e.Projection())
}
