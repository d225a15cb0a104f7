package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// RecipeStore persists recipes together with their contents.
type RecipeStore struct{ db *DB }

var _ repository.RecipeRepository = (*RecipeStore)(nil)

func (db *DB) Recipes() *RecipeStore { return &RecipeStore{db: db} }

// contentRow is the payload of one recipe_contents row. It is comparable, so
// planAssoc can spot an amount or units change on an ingredient that stayed.
type contentRow struct {
	amount float64
	units  string
}

type storedContent struct {
	ingredientID int64
	contentRow
}

// loadContents reads a recipe's contents ordered by ingredient id. NULL units
// come back as "".
func loadContents(ctx context.Context, q querier, recipeID int64) ([]storedContent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ingredient_id, amount, units FROM recipe_contents
		 WHERE recipe_id = ? ORDER BY ingredient_id`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading contents of recipe %d: %w", recipeID, err)
	}
	defer rows.Close()

	out := []storedContent{}
	for rows.Next() {
		var (
			c     storedContent
			units sql.NullString
		)
		if err := rows.Scan(&c.ingredientID, &c.amount, &units); err != nil {
			return nil, fmt.Errorf("sqlite: scanning contents of recipe %d: %w", recipeID, err)
		}
		c.units = units.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// nullableUnits stores "" as NULL.
func nullableUnits(units string) sql.NullString {
	return sql.NullString{String: units, Valid: units != ""}
}

// syncContents reconciles recipe_contents for one recipe: deletes, then
// inserts, then in-place updates of amount and units.
func syncContents(ctx context.Context, q querier, recipeID int64, contents []model.Content) (int64, error) {
	stored, err := loadContents(ctx, q, recipeID)
	if err != nil {
		return 0, err
	}
	storedSet := make(map[int64]contentRow, len(stored))
	for _, c := range stored {
		storedSet[c.ingredientID] = c.contentRow
	}
	current := make(map[int64]contentRow, len(contents))
	for _, c := range contents {
		current[c.Ingredient().ID()] = contentRow{amount: c.Amount(), units: c.Units()}
	}

	plan := planAssoc(storedSet, current)
	if plan.empty() {
		return 0, nil
	}

	var (
		deletes = make([][]any, len(plan.remove))
		inserts = make([][]any, len(plan.add))
		updates = make([][]any, len(plan.update))
	)
	for i, id := range plan.remove {
		deletes[i] = []any{recipeID, id}
	}
	for i, id := range plan.add {
		c := current[id]
		inserts[i] = []any{recipeID, id, c.amount, nullableUnits(c.units)}
	}
	for i, id := range plan.update {
		c := current[id]
		updates[i] = []any{c.amount, nullableUnits(c.units), recipeID, id}
	}

	removed, err := execEach(ctx, q,
		`DELETE FROM recipe_contents WHERE recipe_id = ? AND ingredient_id = ?`, deletes)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting contents of recipe %d: %w", recipeID, err)
	}
	added, err := execEach(ctx, q,
		`INSERT INTO recipe_contents (recipe_id, ingredient_id, amount, units) VALUES (?, ?, ?, ?)`, inserts)
	if isForeignKeyViolation(err) {
		return 0, missingRef("contents")
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting contents of recipe %d: %w", recipeID, err)
	}
	changed, err := execEach(ctx, q,
		`UPDATE recipe_contents SET amount = ?, units = ? WHERE recipe_id = ? AND ingredient_id = ?`, updates)
	if err != nil {
		return 0, fmt.Errorf("sqlite: updating contents of recipe %d: %w", recipeID, err)
	}
	return removed + added + changed, nil
}

// Load returns the recipe with every content's ingredient fully hydrated.
func (s *RecipeStore) Load(ctx context.Context, sel repository.Selector) (*model.Recipe, bool, error) {
	var r *model.Recipe
	err := s.db.read(ctx, func(q querier) error {
		row, ok, err := resolve(ctx, q, "recipes", sel)
		if err != nil || !ok {
			return err
		}
		r, err = newHydrator(ctx, q, s.db.shallowMeals).recipeFromRow(row)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return r, r != nil, nil
}

func (s *RecipeStore) Exists(ctx context.Context, sel repository.Selector) (bool, error) {
	if err := sel.Validate(); err != nil {
		return false, err
	}
	return s.db.RowExists(ctx, "recipes", selectorPredicates(sel))
}

// Save writes the recipe row and reconciles its contents in one transaction.
func (s *RecipeStore) Save(ctx context.Context, r *model.Recipe) (bool, error) {
	if r == nil {
		return false, apperror.ValidationFailed("recipe", "recipe is required")
	}
	contents := r.Contents()
	for _, c := range contents {
		if c.Ingredient() == nil || !c.Ingredient().Persisted() {
			return false, apperror.ValidationFailed("contents", "every ingredient must be saved first")
		}
	}

	var (
		newID    int64
		affected int64
	)
	err := s.db.unitOfWork(ctx, func(q querier) error {
		recipeID := r.ID()
		if !r.Persisted() {
			res, err := q.ExecContext(ctx,
				`INSERT INTO recipes (name, instructions) VALUES (?, ?)`,
				r.Name(), r.Instructions(),
			)
			if err != nil {
				return saveError(model.KindRecipe, r.Name(), err)
			}
			if newID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("sqlite: reading new recipe id: %w", err)
			}
			recipeID, affected = newID, 1
		} else {
			ok, err := rowExists(ctx, q, "recipes", Predicates{"id": recipeID})
			if err != nil {
				return err
			}
			if !ok {
				return apperror.NotFound(model.KindRecipe.Resource(), recipeID)
			}
			res, err := q.ExecContext(ctx,
				`UPDATE recipes SET name = ?, instructions = ?
				 WHERE id = ? AND (name IS NOT ? OR instructions IS NOT ?)`,
				r.Name(), r.Instructions(), recipeID, r.Name(), r.Instructions(),
			)
			if err != nil {
				return saveError(model.KindRecipe, r.Name(), err)
			}
			if affected, err = res.RowsAffected(); err != nil {
				return fmt.Errorf("sqlite: updating recipe %d: %w", recipeID, err)
			}
		}

		n, err := syncContents(ctx, q, recipeID, contents)
		affected += n
		return err
	})
	if err != nil {
		return false, err
	}
	if newID > 0 {
		if err := r.SetID(newID); err != nil {
			return false, err
		}
	}
	return affected > 0, nil
}

// Remove deletes the recipe and its contents. It is refused while the recipe
// is on someone's meal plan.
func (s *RecipeStore) Remove(ctx context.Context, id int64) error {
	if err := validRemoveID(model.KindRecipe, id); err != nil {
		return err
	}
	return s.db.unitOfWork(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM recipe_contents WHERE recipe_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: clearing contents of recipe %d: %w", id, err)
		}
		return removeRow(ctx, q, model.KindRecipe, "recipes", id)
	})
}

// Summary lists every recipe with its contents by ingredient name and the
// number of meal plans it is on.
func (s *RecipeStore) Summary(ctx context.Context, opts repository.SummaryOptions) ([]model.RecipeSummary, error) {
	var out []model.RecipeSummary
	err := s.db.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT id, name, instructions FROM recipes ORDER BY id`)
		if err != nil {
			return fmt.Errorf("sqlite: summarizing recipes: %w", err)
		}
		out = []model.RecipeSummary{}
		index := map[int64]int{}
		for rows.Next() {
			var (
				row          = model.RecipeSummary{Contents: []model.ContentSummary{}}
				instructions sql.NullString
			)
			if err := rows.Scan(&row.ID, &row.Name, &instructions); err != nil {
				rows.Close()
				return fmt.Errorf("sqlite: scanning recipe summary: %w", err)
			}
			row.Instructions = instructions.String
			index[row.ID] = len(out)
			out = append(out, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlite: iterating recipe summary: %w", err)
		}

		contents, err := q.QueryContext(ctx,
			`SELECT rc.recipe_id, i.name, rc.amount, rc.units
			 FROM recipe_contents AS rc
			 JOIN ingredients AS i ON i.id = rc.ingredient_id
			 ORDER BY rc.recipe_id, i.id`)
		if err != nil {
			return fmt.Errorf("sqlite: summarizing recipe contents: %w", err)
		}
		for contents.Next() {
			var (
				recipeID int64
				c        model.ContentSummary
				units    sql.NullString
			)
			if err := contents.Scan(&recipeID, &c.Ingredient, &c.Amount, &units); err != nil {
				contents.Close()
				return fmt.Errorf("sqlite: scanning recipe contents: %w", err)
			}
			c.Units = units.String
			if i, ok := index[recipeID]; ok {
				out[i].Contents = append(out[i].Contents, c)
			}
		}
		contents.Close()
		if err := contents.Err(); err != nil {
			return fmt.Errorf("sqlite: iterating recipe contents: %w", err)
		}

		plans, err := countBy(ctx, q, `SELECT recipe_id, COUNT(*) FROM user_meals GROUP BY recipe_id`)
		if err != nil {
			return err
		}
		for i := range out {
			out[i].Dependents = plans[out[i].ID]
			if opts.SortByName {
				sortByName(out[i].Contents, func(c model.ContentSummary) string { return c.Ingredient })
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opts.SortByName {
		sortByName(out, func(r model.RecipeSummary) string { return r.Name })
	}
	return out, nil
}
