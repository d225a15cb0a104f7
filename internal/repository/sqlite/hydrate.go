package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/pantry/internal/model"
)

// hydrator builds entity graphs for one Load call.
//
// Loading a user pulls in allergies, recipes, the recipes' ingredients, their
// categories and their allergies. The same row is often reached more than
// once (two recipes using flour, a user and an ingredient sharing "Gluten"),
// so each entity is built once per hydrator and shared within the graph.
// A hydrator must not outlive the critical section it was created in.
type hydrator struct {
	ctx          context.Context
	q            querier
	shallowMeals bool

	allergies   map[int64]*model.Allergy
	categories  map[int64]*model.IngredientCategory
	ingredients map[int64]*model.Ingredient
	recipes     map[int64]*model.Recipe
	shallow     map[int64]*model.Recipe
}

func newHydrator(ctx context.Context, q querier, shallowMeals bool) *hydrator {
	return &hydrator{
		ctx:          ctx,
		q:            q,
		shallowMeals: shallowMeals,
		allergies:    map[int64]*model.Allergy{},
		categories:   map[int64]*model.IngredientCategory{},
		ingredients:  map[int64]*model.Ingredient{},
		recipes:      map[int64]*model.Recipe{},
		shallow:      map[int64]*model.Recipe{},
	}
}

// primaryRow fetches a row a foreign key points at. Foreign keys are enforced,
// so a miss here means the database was modified behind our back.
func (h *hydrator) primaryRow(table string, id int64) (Row, error) {
	rows, err := fetchRows(h.ctx, h.q, table, Predicates{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sqlite: %s row %d is referenced but missing", table, id)
	}
	return rows[0], nil
}

func (h *hydrator) allergy(id int64) (*model.Allergy, error) {
	if a, ok := h.allergies[id]; ok {
		return a, nil
	}
	row, err := h.primaryRow(allergiesTable.table, id)
	if err != nil {
		return nil, err
	}
	return h.allergyFromRow(row)
}

func (h *hydrator) allergyFromRow(row Row) (*model.Allergy, error) {
	a, err := model.NewAllergy(row.String("name"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad allergy row: %w", err)
	}
	if err := a.SetID(row.Int64("id")); err != nil {
		return nil, fmt.Errorf("sqlite: bad allergy row: %w", err)
	}
	h.allergies[a.ID()] = a
	return a, nil
}

func (h *hydrator) allergyList(ids []int64) ([]*model.Allergy, error) {
	out := make([]*model.Allergy, 0, len(ids))
	for _, id := range ids {
		a, err := h.allergy(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (h *hydrator) category(id int64) (*model.IngredientCategory, error) {
	if c, ok := h.categories[id]; ok {
		return c, nil
	}
	row, err := h.primaryRow(categoriesTable.table, id)
	if err != nil {
		return nil, err
	}
	return h.categoryFromRow(row)
}

func (h *hydrator) categoryFromRow(row Row) (*model.IngredientCategory, error) {
	c, err := model.NewIngredientCategory(row.String("name"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad ingredient category row: %w", err)
	}
	if err := c.SetID(row.Int64("id")); err != nil {
		return nil, fmt.Errorf("sqlite: bad ingredient category row: %w", err)
	}
	h.categories[c.ID()] = c
	return c, nil
}

func (h *hydrator) ingredient(id int64) (*model.Ingredient, error) {
	if ing, ok := h.ingredients[id]; ok {
		return ing, nil
	}
	row, err := h.primaryRow("ingredients", id)
	if err != nil {
		return nil, err
	}
	return h.ingredientFromRow(row)
}

func (h *hydrator) ingredientFromRow(row Row) (*model.Ingredient, error) {
	id := row.Int64("id")

	category, err := h.category(row.Int64("category_id"))
	if err != nil {
		return nil, err
	}
	allergyIDs, err := ingredientAllergies.refs(h.ctx, h.q, id)
	if err != nil {
		return nil, err
	}
	allergies, err := h.allergyList(allergyIDs)
	if err != nil {
		return nil, err
	}

	ing, err := model.NewIngredient(row.String("name"), category, allergies...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad ingredient row %d: %w", id, err)
	}
	if err := ing.SetID(id); err != nil {
		return nil, fmt.Errorf("sqlite: bad ingredient row: %w", err)
	}
	h.ingredients[id] = ing
	return ing, nil
}

func (h *hydrator) recipe(id int64) (*model.Recipe, error) {
	if r, ok := h.recipes[id]; ok {
		return r, nil
	}
	row, err := h.primaryRow("recipes", id)
	if err != nil {
		return nil, err
	}
	return h.recipeFromRow(row)
}

func (h *hydrator) recipeFromRow(row Row) (*model.Recipe, error) {
	id := row.Int64("id")

	stored, err := loadContents(h.ctx, h.q, id)
	if err != nil {
		return nil, err
	}
	contents := make([]model.Content, 0, len(stored))
	for _, c := range stored {
		ing, err := h.ingredient(c.ingredientID)
		if err != nil {
			return nil, err
		}
		content, err := model.NewContent(ing, c.amount, c.units)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad recipe_contents row (%d, %d): %w", id, c.ingredientID, err)
		}
		contents = append(contents, content)
	}

	r, err := model.NewRecipe(row.String("name"), row.String("instructions"), contents...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad recipe row %d: %w", id, err)
	}
	if err := r.SetID(id); err != nil {
		return nil, fmt.Errorf("sqlite: bad recipe row: %w", err)
	}
	h.recipes[id] = r
	return r, nil
}

// shallowRecipe is a recipe with id, name and instructions only.
func (h *hydrator) shallowRecipe(id int64) (*model.Recipe, error) {
	if r, ok := h.shallow[id]; ok {
		return r, nil
	}
	row, err := h.primaryRow("recipes", id)
	if err != nil {
		return nil, err
	}
	r, err := model.NewRecipe(row.String("name"), row.String("instructions"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad recipe row %d: %w", id, err)
	}
	if err := r.SetID(id); err != nil {
		return nil, fmt.Errorf("sqlite: bad recipe row: %w", err)
	}
	h.shallow[id] = r
	return r, nil
}

func (h *hydrator) userFromRow(row Row) (*model.User, error) {
	id := row.Int64("id")

	allergyIDs, err := userAllergies.refs(h.ctx, h.q, id)
	if err != nil {
		return nil, err
	}
	allergies, err := h.allergyList(allergyIDs)
	if err != nil {
		return nil, err
	}

	mealIDs, err := userMeals.refs(h.ctx, h.q, id)
	if err != nil {
		return nil, err
	}
	meals := make([]*model.Recipe, 0, len(mealIDs))
	for _, mid := range mealIDs {
		var r *model.Recipe
		if h.shallowMeals {
			r, err = h.shallowRecipe(mid)
		} else {
			r, err = h.recipe(mid)
		}
		if err != nil {
			return nil, err
		}
		meals = append(meals, r)
	}

	u, err := model.NewUser(row.String("name"), row.String("password_hash"), row.Bool("is_admin"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: bad user row %d: %w", id, err)
	}
	if err := u.SetID(id); err != nil {
		return nil, fmt.Errorf("sqlite: bad user row: %w", err)
	}
	if err := u.SetAllergies(allergies...); err != nil {
		return nil, fmt.Errorf("sqlite: bad user_allergies for %d: %w", id, err)
	}
	if err := u.SetMeals(meals...); err != nil {
		return nil, fmt.Errorf("sqlite: bad user_meals for %d: %w", id, err)
	}
	return u, nil
}
