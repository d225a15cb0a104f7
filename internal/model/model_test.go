package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pantry/internal/apperror"
)

// =========================================================================
// HELPERS
// =========================================================================

// saved builds a persisted entity the way storage does: construct, then SetID.
func savedAllergy(t *testing.T, id int64, name string) *Allergy {
	t.Helper()
	a, err := NewAllergy(name)
	require.NoError(t, err)
	require.NoError(t, a.SetID(id))
	return a
}

func savedCategory(t *testing.T, id int64, name string) *IngredientCategory {
	t.Helper()
	c, err := NewIngredientCategory(name)
	require.NoError(t, err)
	require.NoError(t, c.SetID(id))
	return c
}

func savedIngredient(t *testing.T, id int64, name string, allergies ...*Allergy) *Ingredient {
	t.Helper()
	ing, err := NewIngredient(name, savedCategory(t, 1, "Produce"), allergies...)
	require.NoError(t, err)
	require.NoError(t, ing.SetID(id))
	return ing
}

func savedRecipe(t *testing.T, id int64, name string) *Recipe {
	t.Helper()
	r, err := NewRecipe(name, "")
	require.NoError(t, err)
	require.NoError(t, r.SetID(id))
	return r
}

// =========================================================================
// IDENTITY
// =========================================================================

func TestIdentityValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    string
	}{
		{name: "plain name", input: "Gluten", want: "Gluten"},
		{name: "trimmed", input: "  Dairy ", want: "Dairy"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAllergy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperror.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Name())
			assert.Zero(t, a.ID())
			assert.False(t, a.Persisted())
		})
	}
}

func TestSetIDRejectsNonPositive(t *testing.T) {
	a, err := NewAllergy("Nuts")
	require.NoError(t, err)

	for _, id := range []int64{0, -1, -42} {
		err := a.SetID(id)
		assert.ErrorIs(t, err, apperror.ErrValidation, "SetID(%d)", id)
	}
	assert.Zero(t, a.ID(), "failed SetID must leave id untouched")

	require.NoError(t, a.SetID(7))
	assert.Equal(t, int64(7), a.ID())
}

func TestSetNameKeepsOldValueOnError(t *testing.T) {
	c := savedCategory(t, 2, "Dairy")
	assert.Error(t, c.SetName(""))
	assert.Equal(t, "Dairy", c.Name())
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind(" Ingredient_Category ")
	require.NoError(t, err)
	assert.Equal(t, KindIngredientCategory, got)

	_, err = ParseKind("snippet")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Equal(t, "ingredient category", KindIngredientCategory.Resource())
}

// =========================================================================
// INGREDIENT
// =========================================================================

func TestNewIngredient_RequiresSavedCategory(t *testing.T) {
	unsaved, err := NewIngredientCategory("Produce")
	require.NoError(t, err)

	_, err = NewIngredient("Flour", unsaved)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = NewIngredient("Flour", nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestIngredientAllergiesAreASet(t *testing.T) {
	gluten := savedAllergy(t, 5, "Gluten")
	nuts := savedAllergy(t, 2, "Nuts")
	glutenAgain := savedAllergy(t, 5, "Gluten")

	ing := savedIngredient(t, 1, "Flour", gluten, nuts, glutenAgain)

	assert.Equal(t, []int64{2, 5}, ing.AllergyIDs(), "deduplicated and ordered by id")
}

func TestIngredientRejectsUnsavedAllergy(t *testing.T) {
	unsaved, err := NewAllergy("Soy")
	require.NoError(t, err)

	ing := savedIngredient(t, 1, "Tofu")
	err = ing.SetAllergies(unsaved)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Empty(t, ing.AllergyIDs())

	assert.ErrorIs(t, ing.SetAllergies(nil), apperror.ErrValidation)
}

func TestAllergiesReturnsCopy(t *testing.T) {
	ing := savedIngredient(t, 1, "Flour", savedAllergy(t, 1, "Gluten"))
	got := ing.Allergies()
	got[0] = nil
	assert.NotNil(t, ing.Allergies()[0])
}

// =========================================================================
// CONTENT & RECIPE
// =========================================================================

func TestNewContent_Amount(t *testing.T) {
	flour := savedIngredient(t, 1, "Flour")

	tests := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{name: "negative fails", amount: -1, wantErr: true},
		{name: "zero succeeds", amount: 0},
		{name: "fraction succeeds", amount: 0.25},
		{name: "NaN fails", amount: math.NaN(), wantErr: true},
		{name: "infinity fails", amount: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContent(flour, tt.amount, "cups")
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, c.Amount())
			assert.Equal(t, "cups", c.Units())
		})
	}
}

func TestNewContent_RequiresSavedIngredient(t *testing.T) {
	unsaved, err := NewIngredient("Salt", savedCategory(t, 1, "Spices"))
	require.NoError(t, err)

	_, err = NewContent(unsaved, 1, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = NewContent(nil, 1, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"2":     2,
		" 1.5 ": 1.5,
		"":      0,
		"abc":   0,
		"NaN":   0,
		"-3":    -3,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseAmount(raw), "ParseAmount(%q)", raw)
	}
}

func TestRecipeRejectsDuplicateIngredient(t *testing.T) {
	flour := savedIngredient(t, 1, "Flour")
	c1, err := NewContent(flour, 2, "cups")
	require.NoError(t, err)
	c2, err := NewContent(flour, 1, "tbsp")
	require.NoError(t, err)

	_, err = NewRecipe("Bread", "", c1, c2)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	var zero Content
	_, err = NewRecipe("Bread", "", zero)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRecipeContentsOrderedByIngredient(t *testing.T) {
	water := savedIngredient(t, 9, "Water")
	flour := savedIngredient(t, 3, "Flour")
	cw, _ := NewContent(water, 1, "cup")
	cf, _ := NewContent(flour, 2, "cups")

	r, err := NewRecipe("Bread", "Knead.", cw, cf)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 9}, r.IngredientIDs())
}

// =========================================================================
// USER
// =========================================================================

func TestNewUser_RequiresHash(t *testing.T) {
	_, err := NewUser("alice", "", false)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUserMeals(t *testing.T) {
	u, err := NewUser("alice", "$2a$04$hash", false)
	require.NoError(t, err)

	bread := savedRecipe(t, 4, "Bread")
	soup := savedRecipe(t, 2, "Soup")

	require.NoError(t, u.AddMeal(bread))
	require.NoError(t, u.AddMeal(soup))
	require.NoError(t, u.AddMeal(bread))
	assert.Equal(t, []int64{2, 4}, u.MealIDs())

	assert.True(t, u.RemoveMeal(4))
	assert.False(t, u.RemoveMeal(4))
	assert.Equal(t, []int64{2}, u.MealIDs())
}

// =========================================================================
// PROJECTION
// =========================================================================

func TestUserProjectionNeverContainsPasswordHash(t *testing.T) {
	u, err := NewUser("alice", "$2a$04$secret", true)
	require.NoError(t, err)
	require.NoError(t, u.SetAllergies(savedAllergy(t, 1, "Gluten")))

	p := u.Projection()
	assert.ElementsMatch(t, []string{"id", "name", "is_admin", "allergies", "meals"}, keys(p))

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password")
}

func TestRecipeJSONNestsIngredients(t *testing.T) {
	gluten := savedAllergy(t, 1, "Gluten")
	flour := savedIngredient(t, 3, "Flour", gluten)
	c, err := NewContent(flour, 2, "cups")
	require.NoError(t, err)
	garnish, err := NewContent(savedIngredient(t, 4, "Parsley"), 0, "")
	require.NoError(t, err)

	r, err := NewRecipe("Bread", "Bake.", c, garnish)
	require.NoError(t, err)

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded struct {
		ID       *int64 `json:"id"`
		Name     string `json:"name"`
		Contents []struct {
			Ingredient struct {
				Name      string `json:"name"`
				Allergies []struct {
					Name string `json:"name"`
				} `json:"allergies"`
			} `json:"ingredient"`
			Amount float64 `json:"amount"`
			Units  *string `json:"units"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Nil(t, decoded.ID, "unsaved recipe encodes id as null")
	require.Len(t, decoded.Contents, 2)
	assert.Equal(t, "Flour", decoded.Contents[0].Ingredient.Name)
	assert.Equal(t, "Gluten", decoded.Contents[0].Ingredient.Allergies[0].Name)
	require.NotNil(t, decoded.Contents[0].Units)
	assert.Equal(t, "cups", *decoded.Contents[0].Units)
	assert.Nil(t, decoded.Contents[1].Units, "absent units encode as null")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
