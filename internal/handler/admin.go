package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
	"github.com/sakif/pantry/internal/service"
)

// AdminHandler is the maintenance surface: summaries, saves and deletes for
// every entity kind. The router mounts it behind RequireAuth + RequireAdmin.
type AdminHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewAdminHandler(catalog *service.CatalogService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{catalog: catalog, logger: logger}
}

// saveRequest is the body of POST /api/admin/{kind}. Only the fields the
// kind uses are read. A zero or missing id inserts.
type saveRequest struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Instructions string           `json:"instructions"`
	CategoryID   int64            `json:"category_id"`
	AllergyIDs   []int64          `json:"allergy_ids"`
	MealIDs      []int64          `json:"meal_ids"`
	Contents     []contentRequest `json:"contents"`
	Password     string           `json:"password"`
	IsAdmin      bool             `json:"is_admin"`
}

// contentRequest is one recipe line. Amount arrives either as a JSON number
// or as the raw text of a form cell ("1.5", "", "a pinch").
type contentRequest struct {
	IngredientID int64           `json:"ingredient_id"`
	Amount       json.RawMessage `json:"amount"`
	Units        string          `json:"units"`
}

// amount decodes the raw amount. Text that is not a number reads as 0.
func (c contentRequest) amount() float64 {
	raw := strings.TrimSpace(string(c.Amount))
	var text string
	if err := json.Unmarshal(c.Amount, &text); err == nil {
		raw = text
	}
	return model.ParseAmount(raw)
}

func (req saveRequest) input() service.EntityInput {
	in := service.EntityInput{
		ID:           req.ID,
		Name:         req.Name,
		Instructions: req.Instructions,
		CategoryID:   req.CategoryID,
		AllergyIDs:   req.AllergyIDs,
		MealIDs:      req.MealIDs,
		Password:     req.Password,
		IsAdmin:      req.IsAdmin,
	}
	for _, c := range req.Contents {
		in.Contents = append(in.Contents, service.ContentInput{
			IngredientID: c.IngredientID,
			Amount:       c.amount(),
			Units:        c.Units,
		})
	}
	return in
}

// saveResponse reports the saved entity and whether the database changed.
// Saving an unmodified entity answers changed=false.
type saveResponse struct {
	Entity  map[string]any `json:"entity"`
	Changed bool           `json:"changed"`
}

// HandleSummary lists every entity of a kind with its report columns.
//
// HTTP: GET /api/admin/{kind}?sort=name
func (h *AdminHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := repository.SummaryOptions{SortByName: r.URL.Query().Get("sort") == "name"}
	out, err := h.catalog.Summary(r.Context(), kind, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSave inserts or updates one entity.
//
// HTTP: POST /api/admin/{kind}
//
// 201 Created for an insert, 200 OK for an update.
func (h *AdminHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid save request",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	e, changed, err := h.catalog.Save(r.Context(), kind, req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if req.ID == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, saveResponse{Entity: e.Projection(), Changed: changed})
}

// HandleRemove deletes one entity.
//
// HTTP: DELETE /api/admin/{kind}/{id}
//
// Entities still referenced elsewhere answer 409 "has_dependents" and
// nothing is deleted.
func (h *AdminHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
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

	if err := h.catalog.Remove(r.Context(), kind, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
