package sqlite

import (
	"context"
	"fmt"
	"slices"

	"github.com/sakif/pantry/internal/apperror"
)

// RECONCILIATION:
// An entity in memory holds a set of references (allergies, meals, recipe
// contents). The database holds the same set as rows of an association table.
// Saving does NOT delete-and-reinsert the whole set. It compares the two and
// touches only the rows that changed:
//
//	stored  {1, 2, 3}        current {2, 3, 4}
//	remove  {1}              add     {4}
//
// Rows for 2 and 3 are left alone (same rowid before and after). When rows
// carry a payload (amount and units on recipe_contents), ids present on both
// sides whose payload differs are updated in place.

// assocPlan is the row work needed to turn stored into current.
// Each list is sorted ascending.
type assocPlan struct {
	remove []int64
	add    []int64
	update []int64
}

func (p assocPlan) empty() bool {
	return len(p.remove) == 0 && len(p.add) == 0 && len(p.update) == 0
}

// planAssoc compares two id-keyed sets. P is the per-row payload; use
// struct{} for pure membership tables.
func planAssoc[P comparable](stored, current map[int64]P) assocPlan {
	var p assocPlan
	for id := range stored {
		if _, ok := current[id]; !ok {
			p.remove = append(p.remove, id)
		}
	}
	for id, cur := range current {
		old, ok := stored[id]
		switch {
		case !ok:
			p.add = append(p.add, id)
		case old != cur:
			p.update = append(p.update, id)
		}
	}
	slices.Sort(p.remove)
	slices.Sort(p.add)
	slices.Sort(p.update)
	return p
}

// association is a many-to-many table with no payload: (owner, ref) pairs.
type association struct {
	table string
	field string // entity field reported when a reference is missing
	owner string // column holding the owning entity's id
	ref   string // column holding the referenced entity's id
}

var (
	ingredientAllergies = association{table: "ingredient_allergies", field: "allergies", owner: "ingredient_id", ref: "allergy_id"}
	userAllergies       = association{table: "user_allergies", field: "allergies", owner: "user_id", ref: "allergy_id"}
	userMeals           = association{table: "user_meals", field: "meals", owner: "user_id", ref: "recipe_id"}
)

// refs returns the referenced ids for one owner, ascending.
func (a association) refs(ctx context.Context, q querier, ownerID int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY %s`,
		quoteIdent(a.ref), quoteIdent(a.table), quoteIdent(a.owner), quoteIdent(a.ref))

	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading %s for %d: %w", a.table, ownerID, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s: %w", a.table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (a association) insert(ctx context.Context, q querier, ownerID int64, refs []int64) (int64, error) {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (?, ?)`,
		quoteIdent(a.table), quoteIdent(a.owner), quoteIdent(a.ref))
	n, err := execEach(ctx, q, query, pairs(ownerID, refs))
	if isForeignKeyViolation(err) {
		return n, missingRef(a.field)
	}
	if err != nil {
		return n, fmt.Errorf("sqlite: inserting into %s for %d: %w", a.table, ownerID, err)
	}
	return n, nil
}

func (a association) delete(ctx context.Context, q querier, ownerID int64, refs []int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND %s = ?`,
		quoteIdent(a.table), quoteIdent(a.owner), quoteIdent(a.ref))
	n, err := execEach(ctx, q, query, pairs(ownerID, refs))
	if err != nil {
		return n, fmt.Errorf("sqlite: deleting from %s for %d: %w", a.table, ownerID, err)
	}
	return n, nil
}

// removeAll drops every row the owner has in this table. Used by Remove
// before the owner's primary row goes.
func (a association) removeAll(ctx context.Context, q querier, ownerID int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, quoteIdent(a.table), quoteIdent(a.owner))
	res, err := q.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: clearing %s for %d: %w", a.table, ownerID, err)
	}
	return res.RowsAffected()
}

// sync makes the stored rows for ownerID equal current and returns how many
// rows it touched. Deletes run before inserts.
func (a association) sync(ctx context.Context, q querier, ownerID int64, current []int64) (int64, error) {
	stored, err := a.refs(ctx, q, ownerID)
	if err != nil {
		return 0, err
	}
	plan := planAssoc(membership(stored), membership(current))
	if plan.empty() {
		return 0, nil
	}

	removed, err := a.delete(ctx, q, ownerID, plan.remove)
	if err != nil {
		return 0, err
	}
	added, err := a.insert(ctx, q, ownerID, plan.add)
	if err != nil {
		return 0, err
	}
	return removed + added, nil
}

func membership(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func pairs(ownerID int64, refs []int64) [][]any {
	out := make([][]any, len(refs))
	for i, ref := range refs {
		out[i] = []any{ownerID, ref}
	}
	return out
}

// missingRef reports an insert whose referenced row is gone, typically deleted
// after the entity holding the reference was loaded.
func missingRef(field string) error {
	return apperror.ValidationFailed(field, field+" must refer to saved rows that still exist")
}
