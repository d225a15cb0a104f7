package model

import "encoding/json"

// IngredientCategory groups ingredients for display ("Produce", "Dairy").
// Every ingredient belongs to exactly one category.
type IngredientCategory struct {
	Identity
}

func NewIngredientCategory(name string) (*IngredientCategory, error) {
	id, err := newIdentity(name)
	if err != nil {
		return nil, err
	}
	return &IngredientCategory{Identity: id}, nil
}

func (c *IngredientCategory) Kind() Kind { return KindIngredientCategory }

func (c *IngredientCategory) Projection() map[string]any {
	return map[string]any{
		"id":   c.projectionID(),
		"name": c.Name(),
	}
}

func (c *IngredientCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Projection())
}
