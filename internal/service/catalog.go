// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can pass
// in-memory fakes and the HTTP layer never sees SQL.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// Repositories is every entity store the services need.
type Repositories struct {
	Allergies   repository.AllergyRepository
	Categories  repository.IngredientCategoryRepository
	Ingredients repository.IngredientRepository
	Recipes     repository.RecipeRepository
	Users       repository.UserRepository
}

// ContentInput is one recipe line as submitted: references the ingredient by id.
type ContentInput struct {
	IngredientID int64
	Amount       float64
	Units        string
}

// EntityInput is an admin save request for any kind. ID 0 inserts, a
// positive ID updates. Only the fields the kind uses are read, and on update
// they replace the stored values.
type EntityInput struct {
	ID           int64
	Name         string
	Instructions string         // recipe
	CategoryID   int64          // ingredient
	AllergyIDs   []int64        // ingredient, user
	Contents     []ContentInput // recipe
	MealIDs      []int64        // user
	Password     string         // user: required on insert, optional on update
	IsAdmin      bool           // user
}

// CatalogService is the admin surface over all five entity kinds plus the
// read-only projections.
type CatalogService struct {
	repos     Repositories
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewCatalogService(repos Repositories, passwords *auth.PasswordService, logger *slog.Logger) *CatalogService {
	return &CatalogService{repos: repos, passwords: passwords, logger: logger}
}

// Get loads one entity for the projection endpoint. Users are only visible
// through their own /api/me.
func (s *CatalogService) Get(ctx context.Context, kind model.Kind, id int64) (model.Entity, error) {
	switch kind {
	case model.KindAllergy:
		return loadOne(ctx, s.repos.Allergies, kind, id)
	case model.KindIngredientCategory:
		return loadOne(ctx, s.repos.Categories, kind, id)
	case model.KindIngredient:
		return loadOne(ctx, s.repos.Ingredients, kind, id)
	case model.KindRecipe:
		return loadOne(ctx, s.repos.Recipes, kind, id)
	case model.KindUser:
		return nil, apperror.Forbidden("user records are not public")
	}
	return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q", kind))
}

// Summary returns the admin listing for kind. The concrete element type
// depends on kind (model.LeafSummary, model.IngredientSummary, ...).
func (s *CatalogService) Summary(ctx context.Context, kind model.Kind, opts repository.SummaryOptions) (any, error) {
	var (
		out any
		err error
	)
	switch kind {
	case model.KindAllergy:
		out, err = s.repos.Allergies.Summary(ctx, opts)
	case model.KindIngredientCategory:
		out, err = s.repos.Categories.Summary(ctx, opts)
	case model.KindIngredient:
		out, err = s.repos.Ingredients.Summary(ctx, opts)
	case model.KindRecipe:
		out, err = s.repos.Recipes.Summary(ctx, opts)
	case model.KindUser:
		out, err = s.repos.Users.Summary(ctx, opts)
	default:
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q", kind))
	}
	if err != nil {
		s.logger.Error("failed to summarize",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return out, nil
}

// Remove deletes one entity. Entities still referenced elsewhere are refused
// with apperror.ErrDependents.
func (s *CatalogService) Remove(ctx context.Context, kind model.Kind, id int64) error {
	var err error
	switch kind {
	case model.KindAllergy:
		err = s.repos.Allergies.Remove(ctx, id)
	case model.KindIngredientCategory:
		err = s.repos.Categories.Remove(ctx, id)
	case model.KindIngredient:
		err = s.repos.Ingredients.Remove(ctx, id)
	case model.KindRecipe:
		err = s.repos.Recipes.Remove(ctx, id)
	case model.KindUser:
		err = s.repos.Users.Remove(ctx, id)
	default:
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q", kind))
	}
	if err != nil {
		s.logger.Info("remove refused",
			slog.String("kind", string(kind)),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.logger.Info("entity removed", slog.String("kind", string(kind)), slog.Int64("id", id))
	return nil
}

// Save inserts or updates one entity and reports whether anything changed.
func (s *CatalogService) Save(ctx context.Context, kind model.Kind, in EntityInput) (model.Entity, bool, error) {
	var (
		e       model.Entity
		changed bool
		err     error
	)
	switch kind {
	case model.KindAllergy:
		e, changed, err = s.saveAllergy(ctx, in)
	case model.KindIngredientCategory:
		e, changed, err = s.saveCategory(ctx, in)
	case model.KindIngredient:
		e, changed, err = s.saveIngredient(ctx, in)
	case model.KindRecipe:
		e, changed, err = s.saveRecipe(ctx, in)
	case model.KindUser:
		e, changed, err = s.saveUser(ctx, in)
	default:
		return nil, false, apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q", kind))
	}
	if err != nil {
		s.logger.Error("failed to save",
			slog.String("kind", string(kind)),
			slog.String("name", in.Name),
			slog.String("error", err.Error()),
		)
		return nil, false, err
	}

	s.logger.Info("entity saved",
		slog.String("kind", string(kind)),
		slog.Int64("id", e.ID()),
		slog.Bool("changed", changed),
	)
	return e, changed, nil
}

// existing loads the entity to update, or returns ok=false for an insert.
func existing[E model.Entity, S any](ctx context.Context, store repository.Store[E, S], kind model.Kind, id int64) (E, bool, error) {
	var zero E
	if id == 0 {
		return zero, false, nil
	}
	e, err := loadOne(ctx, store, kind, id)
	return e, err == nil, err
}

func (s *CatalogService) saveAllergy(ctx context.Context, in EntityInput) (model.Entity, bool, error) {
	a, found, err := existing(ctx, s.repos.Allergies, model.KindAllergy, in.ID)
	if err != nil {
		return nil, false, err
	}
	if found {
		err = a.SetName(in.Name)
	} else {
		a, err = model.NewAllergy(in.Name)
	}
	if err != nil {
		return nil, false, err
	}
	changed, err := s.repos.Allergies.Save(ctx, a)
	return a, changed, err
}

func (s *CatalogService) saveCategory(ctx context.Context, in EntityInput) (model.Entity, bool, error) {
	c, found, err := existing(ctx, s.repos.Categories, model.KindIngredientCategory, in.ID)
	if err != nil {
		return nil, false, err
	}
	if found {
		err = c.SetName(in.Name)
	} else {
		c, err = model.NewIngredientCategory(in.Name)
	}
	if err != nil {
		return nil, false, err
	}
	changed, err := s.repos.Categories.Save(ctx, c)
	return c, changed, err
}

func (s *CatalogService) saveIngredient(ctx context.Context, in EntityInput) (model.Entity, bool, error) {
	category, err := loadOne(ctx, s.repos.Categories, model.KindIngredientCategory, in.CategoryID)
	if err != nil {
		return nil, false, err
	}
	allergies, err := loadAll(ctx, s.repos.Allergies, model.KindAllergy, in.AllergyIDs)
	if err != nil {
		return nil, false, err
	}

	ing, found, err := existing(ctx, s.repos.Ingredients, model.KindIngredient, in.ID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		if ing, err = model.NewIngredient(in.Name, category, allergies...); err != nil {
			return nil, false, err
		}
	} else {
		if err := ing.SetName(in.Name); err != nil {
			return nil, false, err
		}
		if err := ing.SetCategory(category); err != nil {
			return nil, false, err
		}
		if err := ing.SetAllergies(allergies...); err != nil {
			return nil, false, err
		}
	}
	changed, err := s.repos.Ingredients.Save(ctx, ing)
	return ing, changed, err
}

func (s *CatalogService) saveRecipe(ctx context.Context, in EntityInput) (model.Entity, bool, error) {
	contents := make([]model.Content, 0, len(in.Contents))
	for _, c := range in.Contents {
		ing, err := loadOne(ctx, s.repos.Ingredients, model.KindIngredient, c.IngredientID)
		if err != nil {
			return nil, false, err
		}
		content, err := model.NewContent(ing, c.Amount, c.Units)
		if err != nil {
			return nil, false, err
		}
		contents = append(contents, content)
	}

	r, found, err := existing(ctx, s.repos.Recipes, model.KindRecipe, in.ID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		if r, err = model.NewRecipe(in.Name, in.Instructions, contents...); err != nil {
			return nil, false, err
		}
	} else {
		if err := r.SetName(in.Name); err != nil {
			return nil, false, err
		}
		r.SetInstructions(in.Instructions)
		if err := r.SetContents(contents...); err != nil {
			return nil, false, err
		}
	}
	changed, err := s.repos.Recipes.Save(ctx, r)
	return r, changed, err
}

func (s *CatalogService) saveUser(ctx context.Context, in EntityInput) (model.Entity, bool, error) {
	allergies, err := loadAll(ctx, s.repos.Allergies, model.KindAllergy, in.AllergyIDs)
	if err != nil {
		return nil, false, err
	}
	meals, err := loadAll(ctx, s.repos.Recipes, model.KindRecipe, in.MealIDs)
	if err != nil {
		return nil, false, err
	}

	u, found, err := existing(ctx, s.repos.Users, model.KindUser, in.ID)
	if err != nil {
		return nil, false, err
	}

	var hash string
	if in.Password != "" {
		if hash, err = s.passwords.Hash(in.Password); err != nil {
			return nil, false, err
		}
	}

	if !found {
		if hash == "" {
			return nil, false, apperror.ValidationFailed("password", "password is required for a new user")
		}
		if u, err = model.NewUser(in.Name, hash, in.IsAdmin); err != nil {
			return nil, false, err
		}
	} else {
		if err := u.SetName(in.Name); err != nil {
			return nil, false, err
		}
		if hash != "" {
			if err := u.SetPasswordHash(hash); err != nil {
				return nil, false, err
			}
		}
		u.SetAdmin(in.IsAdmin)
	}
	if err := u.SetAllergies(allergies...); err != nil {
		return nil, false, err
	}
	if err := u.SetMeals(meals...); err != nil {
		return nil, false, err
	}
	changed, err := s.repos.Users.Save(ctx, u)
	return u, changed, err
}

// EnsureUser creates the named user unless one already exists. cmd/initdb
// uses it for the bootstrap admin account. An existing user is returned
// untouched, password included.
func (s *CatalogService) EnsureUser(ctx context.Context, name, password string, admin bool) (*model.User, bool, error) {
	u, found, err := s.repos.Users.Load(ctx, repository.ByName(name))
	if err != nil {
		return nil, false, fmt.Errorf("service/catalog: loading user %q: %w", name, err)
	}
	if found {
		return u, false, nil
	}

	e, _, err := s.Save(ctx, model.KindUser, EntityInput{Name: name, Password: password, IsAdmin: admin})
	if err != nil {
		return nil, false, err
	}
	return e.(*model.User), true, nil
}
