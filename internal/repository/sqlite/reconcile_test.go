package sqlite

import (
	"context"
	"reflect"
	"testing"

	"github.com/sakif/pantry/internal/repository"
)

// =========================================================================
// PLANNER
// =========================================================================

func TestPlanAssoc(t *testing.T) {
	set := func(ids ...int64) map[int64]struct{} { return membership(ids) }

	tests := []struct {
		name       string
		stored     map[int64]struct{}
		current    map[int64]struct{}
		wantRemove []int64
		wantAdd    []int64
	}{
		{name: "no change", stored: set(1, 2), current: set(2, 1)},
		{name: "both empty", stored: set(), current: set()},
		{name: "add to empty", stored: set(), current: set(3, 1), wantAdd: []int64{1, 3}},
		{name: "clear all", stored: set(5, 4), current: set(), wantRemove: []int64{4, 5}},
		{name: "swap one", stored: set(1, 2, 3), current: set(2, 3, 4), wantRemove: []int64{1}, wantAdd: []int64{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := planAssoc(tt.stored, tt.current)
			if !reflect.DeepEqual(p.remove, tt.wantRemove) {
				t.Errorf("remove = %v, want %v", p.remove, tt.wantRemove)
			}
			if !reflect.DeepEqual(p.add, tt.wantAdd) {
				t.Errorf("add = %v, want %v", p.add, tt.wantAdd)
			}
			if len(p.update) != 0 {
				t.Errorf("update = %v, want none for membership sets", p.update)
			}
			if p.empty() != (len(tt.wantRemove)+len(tt.wantAdd) == 0) {
				t.Errorf("empty() = %v", p.empty())
			}
		})
	}
}

func TestPlanAssoc_PayloadChange(t *testing.T) {
	stored := map[int64]contentRow{
		1: {amount: 2, units: "cups"},
		2: {amount: 1, units: "cup"},
		3: {amount: 1, units: ""},
	}
	current := map[int64]contentRow{
		1: {amount: 2, units: "cups"},  // unchanged
		2: {amount: 1.5, units: "cup"}, // amount changed
		3: {amount: 1, units: "tsp"},   // units changed
		4: {amount: 0, units: ""},      // new
	}

	p := planAssoc(stored, current)
	if len(p.remove) != 0 {
		t.Errorf("remove = %v, want none", p.remove)
	}
	if !reflect.DeepEqual(p.add, []int64{4}) {
		t.Errorf("add = %v, want [4]", p.add)
	}
	if !reflect.DeepEqual(p.update, []int64{2, 3}) {
		t.Errorf("update = %v, want [2 3]", p.update)
	}
}

// =========================================================================
// ROW STABILITY
// =========================================================================

func TestUserSave_TouchesOnlyChangedMealRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	soup := mustRecipe(t, db, "Soup", "")
	salad := mustRecipe(t, db, "Salad", "")
	stew := mustRecipe(t, db, "Stew", "")

	alice := mustUser(t, db, "alice")
	if err := alice.SetMeals(soup, salad); err != nil {
		t.Fatalf("SetMeals() error = %v", err)
	}
	if _, err := db.Users().Save(ctx, alice); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before := rowids(t, db, "user_meals", "user_id", "recipe_id", alice.ID())

	// Swap Salad for Stew; Soup must not be rewritten.
	if err := alice.SetMeals(soup, stew); err != nil {
		t.Fatalf("SetMeals() error = %v", err)
	}
	changed, err := db.Users().Save(ctx, alice)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !changed {
		t.Error("Save() reported no change")
	}
	after := rowids(t, db, "user_meals", "user_id", "recipe_id", alice.ID())

	if after[soup.ID()] != before[soup.ID()] {
		t.Errorf("Soup row was rewritten: rowid %d → %d", before[soup.ID()], after[soup.ID()])
	}
	if _, ok := after[salad.ID()]; ok {
		t.Error("Salad row still present")
	}
	if _, ok := after[stew.ID()]; !ok {
		t.Error("Stew row missing")
	}

	// Saving again with nothing changed writes nothing.
	changed, err = db.Users().Save(ctx, alice)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if changed {
		t.Error("Save() of an unchanged user reported a change")
	}
}

func TestRecipeSave_UpdatesAmountInPlace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	grains := mustCategory(t, db, "Grains")
	flour := mustIngredient(t, db, "Flour", grains)
	water := mustIngredient(t, db, "Water", grains)
	bread := mustRecipe(t, db, "Bread", "Knead.",
		mustContent(t, flour, 2, "cups"),
		mustContent(t, water, 1, "cup"),
	)
	before := rowids(t, db, "recipe_contents", "recipe_id", "ingredient_id", bread.ID())

	if err := bread.SetContents(
		mustContent(t, flour, 3, "cups"),
		mustContent(t, water, 1, "cup"),
	); err != nil {
		t.Fatalf("SetContents() error = %v", err)
	}
	if _, err := db.Recipes().Save(ctx, bread); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	after := rowids(t, db, "recipe_contents", "recipe_id", "ingredient_id", bread.ID())

	if !reflect.DeepEqual(before, after) {
		t.Errorf("rowids changed: %v → %v; an amount change must be an UPDATE", before, after)
	}

	loaded, ok, err := db.Recipes().Load(ctx, repository.ByID(bread.ID()))
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if got := loaded.Contents()[0].Amount(); got != 3 {
		t.Errorf("Flour amount = %v, want 3", got)
	}
}
