package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// AccountService edits the signed-in user's allergy profile and meal plan.
// Every method loads the user, changes the in-memory set and saves; the store
// writes only the rows that changed.
type AccountService struct {
	users     repository.UserRepository
	allergies repository.AllergyRepository
	recipes   repository.RecipeRepository
	logger    *slog.Logger
}

func NewAccountService(repos Repositories, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:     repos.Users,
		allergies: repos.Allergies,
		recipes:   repos.Recipes,
		logger:    logger,
	}
}

// SetAllergies replaces the user's allergy profile.
func (s *AccountService) SetAllergies(ctx context.Context, userID int64, allergyIDs []int64) (*model.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	allergies, err := loadAll(ctx, s.allergies, model.KindAllergy, allergyIDs)
	if err != nil {
		return nil, err
	}
	if err := user.SetAllergies(allergies...); err != nil {
		return nil, err
	}
	return s.save(ctx, user, "allergies updated")
}

// SetMeals replaces the user's meal plan.
func (s *AccountService) SetMeals(ctx context.Context, userID int64, recipeIDs []int64) (*model.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	meals, err := loadAll(ctx, s.recipes, model.KindRecipe, recipeIDs)
	if err != nil {
		return nil, err
	}
	if err := user.SetMeals(meals...); err != nil {
		return nil, err
	}
	return s.save(ctx, user, "meal plan updated")
}

// AddMeal puts one recipe on the meal plan. Adding a recipe that is already
// there succeeds and writes nothing.
func (s *AccountService) AddMeal(ctx context.Context, userID, recipeID int64) (*model.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	recipe, err := loadOne(ctx, s.recipes, model.KindRecipe, recipeID)
	if err != nil {
		return nil, err
	}
	if err := user.AddMeal(recipe); err != nil {
		return nil, err
	}
	return s.save(ctx, user, "meal added")
}

// RemoveMeal takes one recipe off the meal plan. Removing a recipe that is
// not on it is a not-found error.
func (s *AccountService) RemoveMeal(ctx context.Context, userID, recipeID int64) (*model.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.RemoveMeal(recipeID) {
		return nil, apperror.NotFound("meal", recipeID)
	}
	return s.save(ctx, user, "meal removed")
}

func (s *AccountService) loadUser(ctx context.Context, userID int64) (*model.User, error) {
	return loadOne(ctx, s.users, model.KindUser, userID)
}

func (s *AccountService) save(ctx context.Context, user *model.User, event string) (*model.User, error) {
	changed, err := s.users.Save(ctx, user)
	if err != nil {
		s.logger.Error("failed to save user",
			slog.Int64("userID", user.ID()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.logger.Info(event,
		slog.Int64("userID", user.ID()),
		slog.Bool("changed", changed),
	)
	return user, nil
}

// loadOne loads an entity by id and turns "no such row" into a NotFound error.
func loadOne[E model.Entity, S any](ctx context.Context, store repository.Store[E, S], kind model.Kind, id int64) (E, error) {
	var zero E
	if id <= 0 {
		return zero, apperror.ValidationFailed("id", fmt.Sprintf("%s id must be a positive integer, got %d", kind.Resource(), id))
	}
	e, ok, err := store.Load(ctx, repository.ByID(id))
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, apperror.NotFound(kind.Resource(), id)
	}
	return e, nil
}

func loadAll[E model.Entity, S any](ctx context.Context, store repository.Store[E, S], kind model.Kind, ids []int64) ([]E, error) {
	out := make([]E, 0, len(ids))
	for _, id := range ids {
		e, err := loadOne(ctx, store, kind, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
