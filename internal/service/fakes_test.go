package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// entity is what the fake store needs from an entity: the read side plus the
// id setter storage uses after an insert.
type entity interface {
	model.Entity
	SetID(int64) error
}

// fakeStore is an in-memory repository.Store. It enforces unique names and
// NotFound on update of a missing id, like the real store.
type fakeStore[E entity, S any] struct {
	kind   model.Kind
	rows   map[int64]E
	nextID int64
	saves  int

	// set to a non-nil error to simulate a database failure
	saveErr   error
	removeErr error
	summary   []S
}

func newFakeStore[E entity, S any](kind model.Kind) *fakeStore[E, S] {
	return &fakeStore[E, S]{kind: kind, rows: map[int64]E{}, nextID: 1}
}

func (f *fakeStore[E, S]) Load(ctx context.Context, sel repository.Selector) (E, bool, error) {
	var zero E
	if err := sel.Validate(); err != nil {
		return zero, false, err
	}
	if sel.ID > 0 {
		e, ok := f.rows[sel.ID]
		return e, ok, nil
	}
	for _, e := range f.rows {
		if e.Name() == strings.TrimSpace(sel.Name) {
			return e, true, nil
		}
	}
	return zero, false, nil
}

func (f *fakeStore[E, S]) Exists(ctx context.Context, sel repository.Selector) (bool, error) {
	_, ok, err := f.Load(ctx, sel)
	return ok, err
}

func (f *fakeStore[E, S]) Save(ctx context.Context, e E) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	for id, other := range f.rows {
		if id != e.ID() && other.Name() == e.Name() {
			return false, apperror.Conflict(f.kind.Resource(), e.Name())
		}
	}
	f.saves++
	if e.ID() == 0 {
		if err := e.SetID(f.nextID); err != nil {
			return false, err
		}
		f.nextID++
	} else if _, ok := f.rows[e.ID()]; !ok {
		return false, apperror.NotFound(f.kind.Resource(), e.ID())
	}
	f.rows[e.ID()] = e
	return true, nil
}

func (f *fakeStore[E, S]) Remove(ctx context.Context, id int64) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	if _, ok := f.rows[id]; !ok {
		return apperror.NotFound(f.kind.Resource(), id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeStore[E, S]) Summary(ctx context.Context, opts repository.SummaryOptions) ([]S, error) {
	if f.summary == nil {
		return []S{}, nil
	}
	return f.summary, nil
}

type fakeRepos struct {
	allergies   *fakeStore[*model.Allergy, model.LeafSummary]
	categories  *fakeStore[*model.IngredientCategory, model.LeafSummary]
	ingredients *fakeStore[*model.Ingredient, model.IngredientSummary]
	recipes     *fakeStore[*model.Recipe, model.RecipeSummary]
	users       *fakeStore[*model.User, model.UserSummary]
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		allergies:   newFakeStore[*model.Allergy, model.LeafSummary](model.KindAllergy),
		categories:  newFakeStore[*model.IngredientCategory, model.LeafSummary](model.KindIngredientCategory),
		ingredients: newFakeStore[*model.Ingredient, model.IngredientSummary](model.KindIngredient),
		recipes:     newFakeStore[*model.Recipe, model.RecipeSummary](model.KindRecipe),
		users:       newFakeStore[*model.User, model.UserSummary](model.KindUser),
	}
}

func (f *fakeRepos) Repositories() Repositories {
	return Repositories{
		Allergies:   f.allergies,
		Categories:  f.categories,
		Ingredients: f.ingredients,
		Recipes:     f.recipes,
		Users:       f.users,
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// Cost 4 is the bcrypt minimum; makes tests fast.
func newTestPasswords() *auth.PasswordService {
	return auth.NewPasswordServiceForTest(4)
}

// seed helpers save straight into the fakes.

func seedAllergy(t *testing.T, f *fakeRepos, name string) *model.Allergy {
	t.Helper()
	a, err := model.NewAllergy(name)
	if err != nil {
		t.Fatalf("NewAllergy: %v", err)
	}
	if _, err := f.allergies.Save(context.Background(), a); err != nil {
		t.Fatalf("saving allergy: %v", err)
	}
	return a
}

func seedCategory(t *testing.T, f *fakeRepos, name string) *model.IngredientCategory {
	t.Helper()
	c, err := model.NewIngredientCategory(name)
	if err != nil {
		t.Fatalf("NewIngredientCategory: %v", err)
	}
	if _, err := f.categories.Save(context.Background(), c); err != nil {
		t.Fatalf("saving category: %v", err)
	}
	return c
}

func seedIngredient(t *testing.T, f *fakeRepos, name string, c *model.IngredientCategory) *model.Ingredient {
	t.Helper()
	ing, err := model.NewIngredient(name, c)
	if err != nil {
		t.Fatalf("NewIngredient: %v", err)
	}
	if _, err := f.ingredients.Save(context.Background(), ing); err != nil {
		t.Fatalf("saving ingredient: %v", err)
	}
	return ing
}

func seedRecipe(t *testing.T, f *fakeRepos, name string) *model.Recipe {
	t.Helper()
	r, err := model.NewRecipe(name, "")
	if err != nil {
		t.Fatalf("NewRecipe: %v", err)
	}
	if _, err := f.recipes.Save(context.Background(), r); err != nil {
		t.Fatalf("saving recipe: %v", err)
	}
	return r
}

func seedUser(t *testing.T, f *fakeRepos, name string) *model.User {
	t.Helper()
	u, err := model.NewUser(name, "$2a$04$fake", false)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if _, err := f.users.Save(context.Background(), u); err != nil {
		t.Fatalf("saving user: %v", err)
	}
	return u
}
