package model

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/sakif/pantry/internal/apperror"
)

// Content is one line of a recipe: an ingredient, how much of it and in
// which units. It has no identity of its own; within a recipe it is keyed by
// its ingredient.
//
// Amount is the numeric quantity (zero is allowed for things like a garnish).
// Units is an optional label such as "cups"; "" means no unit.
type Content struct {
	ingredient *Ingredient
	amount     float64
	units      string
}

func NewContent(ingredient *Ingredient, amount float64, units string) (Content, error) {
	if ingredient == nil {
		return Content{}, apperror.ValidationFailed("ingredient", "content must reference an ingredient")
	}
	if !ingredient.Persisted() {
		return Content{}, apperror.ValidationFailed("ingredient",
			fmt.Sprintf("ingredient %q must be saved before it can be referenced", ingredient.Name()))
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Content{}, apperror.ValidationFailed("amount", "amount must be a finite number")
	}
	if amount < 0 {
		return Content{}, apperror.ValidationFailed("amount", "amount must not be negative")
	}
	return Content{
		ingredient: ingredient,
		amount:     amount,
		units:      strings.TrimSpace(units),
	}, nil
}

func (c Content) Ingredient() *Ingredient { return c.ingredient }
func (c Content) Amount() float64         { return c.amount }
func (c Content) Units() string           { return c.units }

func (c Content) Projection() map[string]any {
	var units any
	if c.units != "" {
		units = c.units
	}
	var ingredient map[string]any
	if c.ingredient != nil {
		ingredient = c.ingredient.Projection()
	}
	return map[string]any{
		"ingredient": ingredient,
		"amount":     c.amount,
		"units":      units,
	}
}

// ParseAmount reads an amount typed into a form. Absent or malformed input
// yields 0 so a single bad cell does not reject the whole recipe; a
// well-formed negative number is returned as is and fails NewContent.
func ParseAmount(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Recipe is a dish: free-text instructions plus a set of contents.
type Recipe struct {
	Identity
	instructions string
	contents     []Content
}

func NewRecipe(name, instructions string, contents ...Content) (*Recipe, error) {
	id, err := newIdentity(name)
	if err != nil {
		return nil, err
	}
	r := &Recipe{Identity: id, instructions: instructions}
	if err := r.SetContents(contents...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recipe) Kind() Kind { return KindRecipe }

func (r *Recipe) Instructions() string { return r.instructions }

func (r *Recipe) SetInstructions(instructions string) { r.instructions = instructions }

// Contents returns the contents ordered by ingredient id. The slice is a copy.
func (r *Recipe) Contents() []Content {
	out := make([]Content, len(r.contents))
	copy(out, r.contents)
	return out
}

// SetContents replaces the contents. A recipe cannot list the same
// ingredient twice; zero-valued Contents are rejected.
func (r *Recipe) SetContents(contents ...Content) error {
	seen := make(map[int64]bool, len(contents))
	out := make([]Content, 0, len(contents))
	for _, c := range contents {
		if c.ingredient == nil {
			return apperror.ValidationFailed("contents", "content must reference an ingredient")
		}
		id := c.ingredient.ID()
		if seen[id] {
			return apperror.ValidationFailed("contents",
				fmt.Sprintf("ingredient %q is listed more than once", c.ingredient.Name()))
		}
		seen[id] = true
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Content) int {
		return cmp.Compare(a.ingredient.ID(), b.ingredient.ID())
	})
	r.contents = out
	return nil
}

func (r *Recipe) IngredientIDs() []int64 {
	ids := make([]int64, len(r.contents))
	for i, c := range r.contents {
		ids[i] = c.ingredient.ID()
	}
	return ids
}

func (r *Recipe) Projection() map[string]any {
	contents := make([]map[string]any, len(r.contents))
	for i, c := range r.contents {
		contents[i] = c.Projection()
	}
	return map[string]any{
		"id":           r.projectionID(),
		"name":         r.Name(),
		"instructions": r.instructions,
		"contents":     contents,
	}
}

func (r *Recipe) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Projection())
}
