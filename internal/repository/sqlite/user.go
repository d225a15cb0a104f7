package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore persists accounts together with their allergy profile and meal plan.
type UserStore struct{ db *DB }

func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Load returns the user with allergies and meals hydrated. Meals are full
// recipes unless the DB was opened WithShallowMeals.
func (s *UserStore) Load(ctx context.Context, sel repository.Selector) (*model.User, bool, error) {
	var u *model.User
	err := s.db.read(ctx, func(q querier) error {
		row, ok, err := resolve(ctx, q, "users", sel)
		if err != nil || !ok {
			return err
		}
		u, err = newHydrator(ctx, q, s.db.shallowMeals).userFromRow(row)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return u, u != nil, nil
}

func (s *UserStore) Exists(ctx context.Context, sel repository.Selector) (bool, error) {
	if err := sel.Validate(); err != nil {
		return false, err
	}
	return s.db.RowExists(ctx, "users", selectorPredicates(sel))
}

// Save writes the user row and reconciles user_allergies and user_meals.
//
// Adding one meal to a plan of twenty is one INSERT: the other nineteen rows
// are not rewritten.
func (s *UserStore) Save(ctx context.Context, u *model.User) (bool, error) {
	if u == nil {
		return false, apperror.ValidationFailed("user", "user is required")
	}

	var (
		newID    int64
		affected int64
	)
	err := s.db.unitOfWork(ctx, func(q querier) error {
		userID := u.ID()
		if !u.Persisted() {
			res, err := q.ExecContext(ctx,
				`INSERT INTO users (name, password_hash, is_admin) VALUES (?, ?, ?)`,
				u.Name(), u.PasswordHash(), boolToInt(u.IsAdmin()),
			)
			if err != nil {
				return saveError(model.KindUser, u.Name(), err)
			}
			if newID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("sqlite: reading new user id: %w", err)
			}
			userID, affected = newID, 1
		} else {
			ok, err := rowExists(ctx, q, "users", Predicates{"id": userID})
			if err != nil {
				return err
			}
			if !ok {
				return apperror.NotFound(model.KindUser.Resource(), userID)
			}
			admin := boolToInt(u.IsAdmin())
			res, err := q.ExecContext(ctx,
				`UPDATE users SET name = ?, password_hash = ?, is_admin = ?
				 WHERE id = ? AND (name IS NOT ? OR password_hash IS NOT ? OR is_admin IS NOT ?)`,
				u.Name(), u.PasswordHash(), admin, userID, u.Name(), u.PasswordHash(), admin,
			)
			if err != nil {
				return saveError(model.KindUser, u.Name(), err)
			}
			if affected, err = res.RowsAffected(); err != nil {
				return fmt.Errorf("sqlite: updating user %d: %w", userID, err)
			}
		}

		n, err := userAllergies.sync(ctx, q, userID, u.AllergyIDs())
		if err != nil {
			return err
		}
		affected += n

		n, err = userMeals.sync(ctx, q, userID, u.MealIDs())
		affected += n
		return err
	})
	if err != nil {
		return false, err
	}
	if newID > 0 {
		if err := u.SetID(newID); err != nil {
			return false, err
		}
	}
	return affected > 0, nil
}

// Remove deletes the user with their allergy profile and meal plan.
func (s *UserStore) Remove(ctx context.Context, id int64) error {
	if err := validRemoveID(model.KindUser, id); err != nil {
		return err
	}
	return s.db.unitOfWork(ctx, func(q querier) error {
		if _, err := userAllergies.removeAll(ctx, q, id); err != nil {
			return err
		}
		if _, err := userMeals.removeAll(ctx, q, id); err != nil {
			return err
		}
		return removeRow(ctx, q, model.KindUser, "users", id)
	})
}

// Summary lists every user with allergy and meal names. Password hashes are
// never selected.
func (s *UserStore) Summary(ctx context.Context, opts repository.SummaryOptions) ([]model.UserSummary, error) {
	var out []model.UserSummary
	err := s.db.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT id, name, is_admin FROM users ORDER BY id`)
		if err != nil {
			return fmt.Errorf("sqlite: summarizing users: %w", err)
		}
		out = []model.UserSummary{}
		for rows.Next() {
			var (
				row   = model.UserSummary{Allergies: []string{}, Meals: []string{}}
				admin int64
			)
			if err := rows.Scan(&row.ID, &row.Name, &admin); err != nil {
				rows.Close()
				return fmt.Errorf("sqlite: scanning user summary: %w", err)
			}
			row.IsAdmin = admin != 0
			out = append(out, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("sqlite: iterating user summary: %w", err)
		}

		allergies, err := groupNames(ctx, q,
			`SELECT ua.user_id, a.name
			 FROM user_allergies AS ua
			 JOIN allergies AS a ON a.id = ua.allergy_id
			 ORDER BY ua.user_id, a.id`)
		if err != nil {
			return err
		}
		meals, err := groupNames(ctx, q,
			`SELECT um.user_id, r.name
			 FROM user_meals AS um
			 JOIN recipes AS r ON r.id = um.recipe_id
			 ORDER BY um.user_id, r.id`)
		if err != nil {
			return err
		}

		for i := range out {
			if names, ok := allergies[out[i].ID]; ok {
				out[i].Allergies = names
			}
			if names, ok := meals[out[i].ID]; ok {
				out[i].Meals = names
			}
			if opts.SortByName {
				sortNames(out[i].Allergies)
				sortNames(out[i].Meals)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opts.SortByName {
		sortByName(out, func(r model.UserSummary) string { return r.Name })
	}
	return out, nil
}
