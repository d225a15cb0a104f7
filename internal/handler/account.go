package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/service"
)

// AccountHandler lets a logged-in user edit their own allergy profile and
// meal plan. The user is always the caller; there is no user id in the URL.
type AccountHandler struct {
	account *service.AccountService
	logger  *slog.Logger
}

func NewAccountHandler(account *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{account: account, logger: logger}
}

// idsRequest is the body of the two PUT endpoints: the complete new set.
type idsRequest struct {
	IDs []int64 `json:"ids"`
}

// HandleSetAllergies replaces the caller's allergy profile.
//
// HTTP: PUT /api/me/allergies   {"ids": [1, 4]}
func (h *AccountHandler) HandleSetAllergies(w http.ResponseWriter, r *http.Request) {
	h.replaceSet(w, r, h.account.SetAllergies)
}

// HandleSetMeals replaces the caller's meal plan.
//
// HTTP: PUT /api/me/meals   {"ids": [2, 7]}
func (h *AccountHandler) HandleSetMeals(w http.ResponseWriter, r *http.Request) {
	h.replaceSet(w, r, h.account.SetMeals)
}

// HandleAddMeal adds one recipe to the caller's meal plan.
//
// HTTP: POST /api/me/meals/{id}
func (h *AccountHandler) HandleAddMeal(w http.ResponseWriter, r *http.Request) {
	h.changeMeal(w, r, h.account.AddMeal)
}

// HandleRemoveMeal takes one recipe off the caller's meal plan.
//
// HTTP: DELETE /api/me/meals/{id}
func (h *AccountHandler) HandleRemoveMeal(w http.ResponseWriter, r *http.Request) {
	h.changeMeal(w, r, h.account.RemoveMeal)
}

func (h *AccountHandler) replaceSet(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID int64, ids []int64) (*model.User, error),
) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req idsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid ids request",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	user, err := apply(r.Context(), userID, req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) changeMeal(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID, recipeID int64) (*model.User, error),
) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	recipeID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := apply(r.Context(), userID, recipeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
