package model

// Summaries are denormalized read models for admin listings. They are built
// by dedicated queries, not by loading entities, and are plain structs.
//
// Name lists are never nil so they encode as [] rather than null.

// LeafSummary is a row of the allergy or ingredient category listing.
// Dependents counts rows in other tables that reference this id; an entity
// with zero dependents is safe to delete.
type LeafSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Dependents int64  `json:"dependents"`
}

type IngredientSummary struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Allergies  []string `json:"allergies"`
	Dependents int64    `json:"dependents"` // recipe_contents rows
}

type ContentSummary struct {
	Ingredient string  `json:"ingredient"`
	Amount     float64 `json:"amount"`
	Units      string  `json:"units,omitempty"`
}

type RecipeSummary struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Instructions string           `json:"instructions"`
	Contents     []ContentSummary `json:"contents"`
	Dependents   int64            `json:"dependents"` // user_meals rows
}

// UserSummary never carries credentials. Dependents is always 0: nothing
// references a user through a foreign key.
type UserSummary struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	IsAdmin    bool     `json:"is_admin"`
	Allergies  []string `json:"allergies"`
	Meals      []string `json:"meals"`
	Dependents int64    `json:"dependents"`
}
