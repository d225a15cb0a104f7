package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// IngredientStore persists ingredients together with their allergy set.
type IngredientStore struct{ db *DB }

var _ repository.IngredientRepository = (*IngredientStore)(nil)

func (db *DB) Ingredients() *IngredientStore { return &IngredientStore{db: db} }

// Load returns the ingredient with its category and allergies hydrated.
func (s *IngredientStore) Load(ctx context.Context, sel repository.Selector) (*model.Ingredient, bool, error) {
	var ing *model.Ingredient
	err := s.db.read(ctx, func(q querier) error {
		row, ok, err := resolve(ctx, q, "ingredients", sel)
		if err != nil || !ok {
			return err
		}
		ing, err = newHydrator(ctx, q, s.db.shallowMeals).ingredientFromRow(row)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return ing, ing != nil, nil
}

func (s *IngredientStore) Exists(ctx context.Context, sel repository.Selector) (bool, error) {
	if err := sel.Validate(); err != nil {
		return false, err
	}
	return s.db.RowExists(ctx, "ingredients", selectorPredicates(sel))
}

// Save writes the primary row and reconciles ingredient_allergies in one
// transaction. On update only the allergy rows that changed are touched.
func (s *IngredientStore) Save(ctx context.Context, ing *model.Ingredient) (bool, error) {
	if ing == nil {
		return false, apperror.ValidationFailed("ingredient", "ingredient is required")
	}
	category := ing.Category()
	if category == nil || !category.Persisted() {
		return false, apperror.ValidationFailed("category", "ingredient category must be saved first")
	}

	var (
		newID    int64
		affected int64
	)
	err := s.db.unitOfWork(ctx, func(q querier) error {
		if !ing.Persisted() {
			res, err := q.ExecContext(ctx,
				`INSERT INTO ingredients (name, category_id) VALUES (?, ?)`,
				ing.Name(), category.ID(),
			)
			if isForeignKeyViolation(err) {
				return missingRef("category")
			}
			if err != nil {
				return saveError(model.KindIngredient, ing.Name(), err)
			}
			if newID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("sqlite: reading new ingredient id: %w", err)
			}
			n, err := ingredientAllergies.insert(ctx, q, newID, ing.AllergyIDs())
			affected = 1 + n
			return err
		}

		ok, err := rowExists(ctx, q, "ingredients", Predicates{"id": ing.ID()})
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound(model.KindIngredient.Resource(), ing.ID())
		}
		res, err := q.ExecContext(ctx,
			`UPDATE ingredients SET name = ?, category_id = ?
			 WHERE id = ? AND (name IS NOT ? OR category_id IS NOT ?)`,
			ing.Name(), category.ID(), ing.ID(), ing.Name(), category.ID(),
		)
		if isForeignKeyViolation(err) {
			return missingRef("category")
		}
		if err != nil {
			return saveError(model.KindIngredient, ing.Name(), err)
		}
		if affected, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("sqlite: updating ingredient %d: %w", ing.ID(), err)
		}
		n, err := ingredientAllergies.sync(ctx, q, ing.ID(), ing.AllergyIDs())
		affected += n
		return err
	})
	if err != nil {
		return false, err
	}
	if newID > 0 {
		if err := ing.SetID(newID); err != nil {
			return false, err
		}
	}
	return affected > 0, nil
}

// Remove deletes the ingredient and its allergy rows. It is refused while a
// recipe still uses the ingredient.
func (s *IngredientStore) Remove(ctx context.Context, id int64) error {
	if err := validRemoveID(model.KindIngredient, id); err != nil {
		return err
	}
	return s.db.unitOfWork(ctx, func(q querier) error {
		if _, err := ingredientAllergies.removeAll(ctx, q, id); err != nil {
			return err
		}
		return removeRow(ctx, q, model.KindIngredient, "ingredients", id)
	})
}

// Summary lists every ingredient with its category name, allergy names and
// the number of recipes using it.
func (s *IngredientStore) Summary(ctx context.Context, opts repository.SummaryOptions) ([]model.IngredientSummary, error) {
	var out []model.IngredientSummary
	err := s.db.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT i.id, i.name, COALESCE(c.name, '')
			 FROM ingredients AS i
			 LEFT JOIN ingredient_categories AS c ON c.id = i.category_id
			 ORDER BY i.id`)
		if err != nil {
			return fmt.Errorf("sqlite: summarizing ingredients: %w", err)
		}
		out = []model.IngredientSummary{}
		for rows.Next() {
			row := model.IngredientSummary{Allergies: []string{}}
			if err := rows.Scan(&row.ID, &row.Name, &row.Category); err != nil {
				rows.Close()
				return fmt.Errorf("sqlite: scanning ingredient summary: %w", err)
			}
			out = append(out, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlite: iterating ingredient summary: %w", err)
		}

		allergies, err := groupNames(ctx, q,
			`SELECT ia.ingredient_id, a.name
			 FROM ingredient_allergies AS ia
			 JOIN allergies AS a ON a.id = ia.allergy_id
			 ORDER BY ia.ingredient_id, a.id`)
		if err != nil {
			return err
		}
		uses, err := countBy(ctx, q,
			`SELECT ingredient_id, COUNT(*) FROM recipe_contents GROUP BY ingredient_id`)
		if err != nil {
			return err
		}

		for i := range out {
			if names, ok := allergies[out[i].ID]; ok {
				out[i].Allergies = names
			}
			out[i].Dependents = uses[out[i].ID]
			if opts.SortByName {
				sortNames(out[i].Allergies)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opts.SortByName {
		sortByName(out, func(r model.IngredientSummary) string { return r.Name })
	}
	return out, nil
}

// groupNames runs a two-column (owner id, name) query and groups the names
// by owner, keeping query order.
func groupNames(ctx context.Context, q querier, query string, args ...any) (map[int64][]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: grouping names: %w", err)
	}
	defer rows.Close()

	out := map[int64][]string{}
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning grouped name: %w", err)
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

// countBy runs a two-column (id, count) query.
func countBy(ctx context.Context, q querier, query string, args ...any) (map[int64]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting: %w", err)
	}
	defer rows.Close()

	out := map[int64]int64{}
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}
