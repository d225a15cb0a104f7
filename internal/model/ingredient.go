package model

import (
	"encoding/json"
	"fmt"

	"github.com/sakif/pantry/internal/apperror"
)

// Ingredient is a food item that recipes are made of.
//
// It references exactly one IngredientCategory and a set of Allergies the
// ingredient is known to cause. Both are held by reference: the pointed-to
// entities must already be saved.
type Ingredient struct {
	Identity
	category  *IngredientCategory
	allergies []*Allergy
}

func NewIngredient(name string, category *IngredientCategory, allergies ...*Allergy) (*Ingredient, error) {
	id, err := newIdentity(name)
	if err != nil {
		return nil, err
	}
	ing := &Ingredient{Identity: id}
	if err := ing.SetCategory(category); err != nil {
		return nil, err
	}
	if err := ing.SetAllergies(allergies...); err != nil {
		return nil, err
	}
	return ing, nil
}

func (i *Ingredient) Kind() Kind { return KindIngredient }

func (i *Ingredient) Category() *IngredientCategory { return i.category }

// SetCategory replaces the category. The category must be saved.
func (i *Ingredient) SetCategory(category *IngredientCategory) error {
	if category == nil {
		return apperror.ValidationFailed("category", "ingredient must have a category")
	}
	if !category.Persisted() {
		return apperror.ValidationFailed("category",
			fmt.Sprintf("ingredient category %q must be saved before it can be referenced", category.Name()))
	}
	i.category = category
	return nil
}

// Allergies returns the allergy set ordered by id. The slice is a copy.
func (i *Ingredient) Allergies() []*Allergy {
	out := make([]*Allergy, len(i.allergies))
	copy(out, i.allergies)
	return out
}

// SetAllergies replaces the allergy set. Duplicates collapse.
func (i *Ingredient) SetAllergies(allergies ...*Allergy) error {
	set, err := refSet("allergies", allergies)
	if err != nil {
		return err
	}
	i.allergies = set
	return nil
}

func (i *Ingredient) AllergyIDs() []int64 { return idsOf(i.allergies) }

func (i *Ingredient) Projection() map[string]any {
	var category map[string]any
	if i.category != nil {
		category = i.category.Projection()
	}
	return map[string]any{
		"id":        i.projectionID(),
		"name":      i.Name(),
		"category":  category,
		"allergies": projections(i.allergies),
	}
}

func (i *Ingredient) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Projection())
}
