// Package repository declares the persistence contract every entity store
// follows. internal/repository/sqlite implements it.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/model"
)

// Selector picks one entity by id or by name. ID takes priority when both are set.
type Selector struct {
	ID   int64
	Name string
}

func ByID(id int64) Selector       { return Selector{ID: id} }
func ByName(name string) Selector { return Selector{Name: name} }

// Validate rejects a selector that cannot match anything.
func (s Selector) Validate() error {
	if s.ID < 0 {
		return apperror.ValidationFailed("id", fmt.Sprintf("id must be a positive integer, got %d", s.ID))
	}
	if s.ID == 0 && strings.TrimSpace(s.Name) == "" {
		return apperror.ValidationFailed("selector", "an id or a name is required")
	}
	return nil
}

func (s Selector) String() string {
	if s.ID > 0 {
		return fmt.Sprintf("%d", s.ID)
	}
	return s.Name
}

// SummaryOptions controls summary ordering. By default rows come back by id
// ascending; SortByName orders rows (and the name lists inside them)
// case-insensitively by name.
type SummaryOptions struct {
	SortByName bool
}

// Store is the per-entity persistence contract.
//
//   - Load returns (entity, true, nil) when found and (zero, false, nil) when
//     the selector matched nothing. Not found is a value, not an error.
//   - Save inserts when the entity has no id and reconciles otherwise. It
//     reports whether any row was affected. A failed insert leaves the id at 0.
//   - Remove fails with apperror.ErrDependents while other rows still
//     reference the id, and with apperror.ErrNotFound when there is no such row.
type Store[E model.Entity, S any] interface {
	Load(ctx context.Context, sel Selector) (E, bool, error)
	Exists(ctx context.Context, sel Selector) (bool, error)
	Save(ctx context.Context, e E) (bool, error)
	Remove(ctx context.Context, id int64) error
	Summary(ctx context.Context, opts SummaryOptions) ([]S, error)
}

type (
	AllergyRepository            = Store[*model.Allergy, model.LeafSummary]
	IngredientCategoryRepository = Store[*model.IngredientCategory, model.LeafSummary]
	IngredientRepository         = Store[*model.Ingredient, model.IngredientSummary]
	RecipeRepository             = Store[*model.Recipe, model.RecipeSummary]
	UserRepository               = Store[*model.User, model.UserSummary]
)
