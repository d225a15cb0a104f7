package model

import (
	"encoding/json"

	"github.com/sakif/pantry/internal/apperror"
)

// User is an account. It carries the user's allergy profile and meal plan.
//
// The password hash is opaque here: hashing and verification live in
// internal/auth. It is write-only from the outside world's point of view and
// never appears in Projection().
type User struct {
	Identity
	passwordHash string
	isAdmin      bool
	allergies    []*Allergy
	meals        []*Recipe
}

func NewUser(name, passwordHash string, isAdmin bool) (*User, error) {
	id, err := newIdentity(name)
	if err != nil {
		return nil, err
	}
	u := &User{Identity: id, isAdmin: isAdmin}
	if err := u.SetPasswordHash(passwordHash); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Kind() Kind { return KindUser }

func (u *User) PasswordHash() string { return u.passwordHash }

func (u *User) SetPasswordHash(hash string) error {
	if hash == "" {
		return apperror.ValidationFailed("password_hash", "password hash must not be empty")
	}
	u.passwordHash = hash
	return nil
}

func (u *User) IsAdmin() bool { return u.isAdmin }

func (u *User) SetAdmin(isAdmin bool) { u.isAdmin = isAdmin }

func (u *User) Allergies() []*Allergy {
	out := make([]*Allergy, len(u.allergies))
	copy(out, u.allergies)
	return out
}

func (u *User) SetAllergies(allergies ...*Allergy) error {
	set, err := refSet("allergies", allergies)
	if err != nil {
		return err
	}
	u.allergies = set
	return nil
}

func (u *User) AllergyIDs() []int64 { return idsOf(u.allergies) }

// Meals returns the user's meal plan ordered by recipe id.
func (u *User) Meals() []*Recipe {
	out := make([]*Recipe, len(u.meals))
	copy(out, u.meals)
	return out
}

func (u *User) SetMeals(meals ...*Recipe) error {
	set, err := refSet("meals", meals)
	if err != nil {
		return err
	}
	u.meals = set
	return nil
}

// AddMeal puts a recipe on the meal plan. Adding one that is already there is a no-op.
func (u *User) AddMeal(recipe *Recipe) error {
	return u.SetMeals(append(u.Meals(), recipe)...)
}

// RemoveMeal takes a recipe off the meal plan and reports whether it was there.
func (u *User) RemoveMeal(recipeID int64) bool {
	for i, m := range u.meals {
		if m.ID() == recipeID {
			u.meals = append(u.meals[:i:i], u.meals[i+1:]...)
			return true
		}
	}
	return false
}

func (u *User) MealIDs() []int64 { return idsOf(u.meals) }

func (u *User) Projection() map[string]any {
	return map[string]any{
		"id":        u.projectionID(),
		"name":      u.Name(),
		"is_admin":  u.isAdmin,
		"allergies": projections(u.allergies),
		"meals":     projections(u.meals),
	}
}

func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Projection())
}
