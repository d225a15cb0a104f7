// Package model defines the five persisted entities of the pantry (Allergy,
// IngredientCategory, Ingredient, Recipe, User) and the read models returned by
// summary queries.
//
// INVARIANTS ARE ENFORCED AT CONSTRUCTION:
// Entity fields are unexported. The only way to build or change an entity is
// through a constructor or setter that validates its input, so an entity with
// an empty name, a negative id, a negative amount or a reference to an unsaved
// row cannot exist in memory. Storage code uses the same setters when it
// hydrates rows.
//
// SERIALIZATION:
// Each type decides which of its fields are public in Projection(). The
// password hash on User is simply not in that list. MarshalJSON encodes the
// projection, so json.Marshal on any entity is always safe.
package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/sakif/pantry/internal/apperror"
)

// Kind names an entity type. The set is closed: ParseKind rejects anything else.
type Kind string

const (
	KindAllergy            Kind = "allergy"
	KindIngredientCategory Kind = "ingredient_category"
	KindIngredient         Kind = "ingredient"
	KindRecipe             Kind = "recipe"
	KindUser               Kind = "user"
)

// Kinds lists every entity kind in dependency order (leaves first).
var Kinds = []Kind{KindAllergy, KindIngredientCategory, KindIngredient, KindRecipe, KindUser}

// ParseKind maps a URL or form value to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindAllergy, KindIngredientCategory, KindIngredient, KindRecipe, KindUser:
		return k, nil
	}
	return "", apperror.ValidationFailed("kind", fmt.Sprintf("unknown object type %q", s))
}

// Resource is the human-readable name used in error messages.
func (k Kind) Resource() string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// Entity is the contract shared by every persisted type.
type Entity interface {
	ID() int64
	Name() string
	Kind() Kind
	Projection() map[string]any
}

// Identity holds the id and name every entity has. It is embedded by value.
//
// id == 0 means "not yet persisted". Storage assigns a positive id on insert.
type Identity struct {
	id   int64
	name string
}

func newIdentity(name string) (Identity, error) {
	var i Identity
	if err := i.SetName(name); err != nil {
		return Identity{}, err
	}
	return i, nil
}

func (i *Identity) ID() int64 { return i.id }

func (i *Identity) Name() string { return i.name }

// Persisted reports whether the entity has been assigned an id by storage.
func (i *Identity) Persisted() bool { return i.id > 0 }

// SetName replaces the name. Surrounding whitespace is dropped; an empty
// result is rejected.
func (i *Identity) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperror.ValidationFailed("name", "name must be a non-empty string")
	}
	i.name = name
	return nil
}

// SetID records the identifier assigned by storage.
func (i *Identity) SetID(id int64) error {
	if id < 1 {
		return apperror.ValidationFailed("id", fmt.Sprintf("id must be a positive integer, got %d", id))
	}
	i.id = id
	return nil
}

// projectionID renders an unsaved id as null rather than 0.
func (i *Identity) projectionID() any {
	if i.id == 0 {
		return nil
	}
	return i.id
}

func (i *Identity) String() string {
	return fmt.Sprintf("%s (%d)", i.name, i.id)
}

// refSet validates a set of references and returns it de-duplicated and
// sorted by id. Every reference must be non-nil and persisted.
func refSet[T any, P interface {
	*T
	Entity
}](field string, refs []P) ([]P, error) {
	seen := make(map[int64]bool, len(refs))
	out := make([]P, 0, len(refs))
	for _, ref := range refs {
		if ref == nil {
			return nil, apperror.ValidationFailed(field, field+" must not contain empty references")
		}
		if ref.ID() < 1 {
			return nil, apperror.ValidationFailed(field,
				fmt.Sprintf("%s %q must be saved before it can be referenced", ref.Kind().Resource(), ref.Name()))
		}
		if seen[ref.ID()] {
			continue
		}
		seen[ref.ID()] = true
		out = append(out, ref)
	}
	sortByID(out)
	return out, nil
}

func sortByID[P Entity](refs []P) {
	slices.SortFunc(refs, func(a, b P) int { return cmp.Compare(a.ID(), b.ID()) })
}

func idsOf[P Entity](refs []P) []int64 {
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID()
	}
	return ids
}

func projections[P Entity](refs []P) []map[string]any {
	out := make([]map[string]any, len(refs))
	for i, ref := range refs {
		out[i] = ref.Projection()
	}
	return out
}
