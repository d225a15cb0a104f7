package sqlite

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// foreignRef is a column somewhere else that points at a table's id.
type foreignRef struct {
	table  string
	column string
}

// leafTable describes an entity that is only a name: allergies and
// ingredient categories. Both stores share its save/remove/summary code.
type leafTable struct {
	kind       model.Kind
	table      string
	dependents []foreignRef
}

var (
	allergiesTable = leafTable{
		kind:  model.KindAllergy,
		table: "allergies",
		dependents: []foreignRef{
			{table: "ingredient_allergies", column: "allergy_id"},
			{table: "user_allergies", column: "allergy_id"},
		},
	}
	categoriesTable = leafTable{
		kind:       model.KindIngredientCategory,
		table:      "ingredient_categories",
		dependents: []foreignRef{{table: "ingredients", column: "category_id"}},
	}
)

func (t leafTable) insert(ctx context.Context, q querier, name string) (int64, error) {
	res, err := q.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name) VALUES (?)`, quoteIdent(t.table)), name)
	if err != nil {
		return 0, saveError(t.kind, name, err)
	}
	return res.LastInsertId()
}

func (t leafTable) update(ctx context.Context, q querier, id int64, name string) (int64, error) {
	ok, err := rowExists(ctx, q, t.table, Predicates{"id": id})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperror.NotFound(t.kind.Resource(), id)
	}
	res, err := q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET name = ? WHERE id = ? AND name IS NOT ?`, quoteIdent(t.table)), name, id, name)
	if err != nil {
		return 0, saveError(t.kind, name, err)
	}
	return res.RowsAffected()
}

// summary counts dependents with one pre-aggregated subquery per referencing
// table. Joining the referencing tables directly would multiply the counts
// (2 ingredients × 3 users = 6 rows).
func (t leafTable) summary(ctx context.Context, q querier, opts repository.SummaryOptions) ([]model.LeafSummary, error) {
	var (
		joins []string
		sums  = []string{"0"}
	)
	for i, d := range t.dependents {
		alias := fmt.Sprintf("d%d", i)
		joins = append(joins, fmt.Sprintf(
			`LEFT JOIN (SELECT %[1]s AS ref, COUNT(*) AS n FROM %[2]s GROUP BY %[1]s) AS %[3]s ON %[3]s.ref = t.id`,
			quoteIdent(d.column), quoteIdent(d.table), alias))
		sums = append(sums, fmt.Sprintf("COALESCE(%s.n, 0)", alias))
	}
	query := fmt.Sprintf(`SELECT t.id, t.name, %s FROM %s AS t %s ORDER BY t.id`,
		strings.Join(sums, " + "), quoteIdent(t.table), strings.Join(joins, " "))

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: summarizing %s: %w", t.table, err)
	}
	defer rows.Close()

	out := []model.LeafSummary{}
	for rows.Next() {
		var s model.LeafSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Dependents); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s summary: %w", t.table, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s summary: %w", t.table, err)
	}

	if opts.SortByName {
		sortByName(out, func(s model.LeafSummary) string { return s.Name })
	}
	return out, nil
}

// removeRow deletes one primary row. A foreign key failure means something
// still points at it; the caller's unit of work rolls back.
func removeRow(ctx context.Context, q querier, kind model.Kind, table string, id int64) error {
	res, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdent(table)), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.HasDependents(kind.Resource(), id)
		}
		return fmt.Errorf("sqlite: deleting %s %d: %w", kind.Resource(), id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %d: %w", kind.Resource(), id, err)
	}
	if n == 0 {
		return apperror.NotFound(kind.Resource(), id)
	}
	return nil
}

func validRemoveID(kind model.Kind, id int64) error {
	if id <= 0 {
		return apperror.ValidationFailed("id", fmt.Sprintf("%s id must be a positive integer, got %d", kind.Resource(), id))
	}
	return nil
}

// saveError classifies a failed write. A UNIQUE failure is a name clash;
// anything else stays a storage error.
func saveError(kind model.Kind, name string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isUniqueViolation(err) {
		return apperror.Conflict(kind.Resource(), name)
	}
	return fmt.Errorf("sqlite: saving %s %q: %w", kind.Resource(), name, err)
}

// sortByName orders summaries case-insensitively. Ties keep id order.
func sortByName[S any](items []S, name func(S) string) {
	slices.SortStableFunc(items, func(a, b S) int {
		return cmp.Compare(strings.ToLower(name(a)), strings.ToLower(name(b)))
	})
}

func sortNames(names []string) {
	sortByName(names, func(s string) string { return s })
}

// =========================================================================
// ALLERGIES
// =========================================================================

// AllergyStore persists allergies.
type AllergyStore struct{ db *DB }

var _ repository.AllergyRepository = (*AllergyStore)(nil)

func (db *DB) Allergies() *AllergyStore { return &AllergyStore{db: db} }

func (s *AllergyStore) Load(ctx context.Context, sel repository.Selector) (*model.Allergy, bool, error) {
	var a *model.Allergy
	err := s.db.read(ctx, func(q querier) error {
		row, ok, err := resolve(ctx, q, allergiesTable.table, sel)
		if err != nil || !ok {
			return err
		}
		a, err = newHydrator(ctx, q, s.db.shallowMeals).allergyFromRow(row)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return a, a != nil, nil
}

func (s *AllergyStore) Exists(ctx context.Context, sel repository.Selector) (bool, error) {
	if err := sel.Validate(); err != nil {
		return false, err
	}
	return s.db.RowExists(ctx, allergiesTable.table, selectorPredicates(sel))
}

// Save inserts a new allergy or renames an existing one. The id is set on a
// only after the transaction commits.
func (s *AllergyStore) Save(ctx context.Context, a *model.Allergy) (bool, error) {
	if a == nil {
		return false, apperror.ValidationFailed("allergy", "allergy is required")
	}
	var (
		newID    int64
		affected int64
	)
	err := s.db.unitOfWork(ctx, func(q querier) error {
		var err error
		if !a.Persisted() {
			newID, err = allergiesTable.insert(ctx, q, a.Name())
			affected = 1
			return err
		}
		affected, err = allergiesTable.update(ctx, q, a.ID(), a.Name())
		return err
	})
	if err != nil {
		return false, err
	}
	if newID > 0 {
		if err := a.SetID(newID); err != nil {
			return false, err
		}
	}
	return affected > 0, nil
}

func (s *AllergyStore) Remove(ctx context.Context, id int64) error {
	if err := validRemoveID(model.KindAllergy, id); err != nil {
		return err
	}
	return s.db.unitOfWork(ctx, func(q querier) error {
		return removeRow(ctx, q, model.KindAllergy, allergiesTable.table, id)
	})
}

func (s *AllergyStore) Summary(ctx context.Context, opts repository.SummaryOptions) ([]model.LeafSummary, error) {
	var out []model.LeafSummary
	err := s.db.read(ctx, func(q querier) error {
		var err error
		out, err = allergiesTable.summary(ctx, q, opts)
		return err
	})
	return out, err
}

// =========================================================================
// INGREDIENT CATEGORIES
// =========================================================================

// CategoryStore persists ingredient categories.
type CategoryStore struct{ db *DB }

var _ repository.IngredientCategoryRepository = (*CategoryStore)(nil)

func (db *DB) Categories() *CategoryStore { return &CategoryStore{db: db} }

func (s *CategoryStore) Load(ctx context.Context, sel repository.Selector) (*model.IngredientCategory, bool, error) {
	var c *model.IngredientCategory
	err := s.db.read(ctx, func(q querier) error {
		row, ok, err := resolve(ctx, q, categoriesTable.table, sel)
		if err != nil || !ok {
			return err
		}
		c, err = newHydrator(ctx, q, s.db.shallowMeals).categoryFromRow(row)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return c, c != nil, nil
}

func (s *CategoryStore) Exists(ctx context.Context, sel repository.Selector) (bool, error) {
	if err := sel.Validate(); err != nil {
		return false, err
	}
	return s.db.RowExists(ctx, categoriesTable.table, selectorPredicates(sel))
}

func (s *CategoryStore) Save(ctx context.Context, c *model.IngredientCategory) (bool, error) {
	if c == nil {
		return false, apperror.ValidationFailed("ingredient_category", "ingredient category is required")
	}
	var (
		newID    int64
		affected int64
	)
	err := s.db.unitOfWork(ctx, func(q querier) error {
		var err error
		if !c.Persisted() {
			newID, err = categoriesTable.insert(ctx, q, c.Name())
			affected = 1
			return err
		}
		affected, err = categoriesTable.update(ctx, q, c.ID(), c.Name())
		return err
	})
	if err != nil {
		return false, err
	}
	if newID > 0 {
		if err := c.SetID(newID); err != nil {
			return false, err
		}
	}
	return affected > 0, nil
}

func (s *CategoryStore) Remove(ctx context.Context, id int64) error {
	if err := validRemoveID(model.KindIngredientCategory, id); err != nil {
		return err
	}
	return s.db.unitOfWork(ctx, func(q querier) error {
		return removeRow(ctx, q, model.KindIngredientCategory, categoriesTable.table, id)
	})
}

func (s *CategoryStore) Summary(ctx context.Context, opts repository.SummaryOptions) ([]model.LeafSummary, error) {
	var out []model.LeafSummary
	err := s.db.read(ctx, func(q querier) error {
		var err error
		out, err = categoriesTable.summary(ctx, q, opts)
		return err
	})
	return out, err
}
