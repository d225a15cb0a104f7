// Package seed loads reference data (categories, allergies, ingredients and
// recipes) from a YAML file into a fresh or existing database.
//
// FILE FORMAT:
//
//	categories: [Grains, Liquids]
//	allergies:  [Gluten]
//	ingredients:
//	  - name: Flour
//	    category: Grains
//	    allergies: [Gluten]
//	recipes:
//	  - name: Bread
//	    instructions: Knead and bake.
//	    contents:
//	      - {ingredient: Flour, amount: 2, units: cups}
//
// Everything refers to everything else by name. Entries whose name already
// exists are left alone, so running the same file twice is harmless.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
	"github.com/sakif/pantry/internal/service"
)

// File is the decoded YAML document.
type File struct {
	Categories  []string     `yaml:"categories"`
	Allergies   []string     `yaml:"allergies"`
	Ingredients []Ingredient `yaml:"ingredients"`
	Recipes     []Recipe     `yaml:"recipes"`
}

type Ingredient struct {
	Name      string   `yaml:"name"`
	Category  string   `yaml:"category"`
	Allergies []string `yaml:"allergies"`
}

type Recipe struct {
	Name         string    `yaml:"name"`
	Instructions string    `yaml:"instructions"`
	Contents     []Content `yaml:"contents"`
}

type Content struct {
	Ingredient string  `yaml:"ingredient"`
	Amount     float64 `yaml:"amount"`
	Units      string  `yaml:"units"`
}

// Stats counts the rows a run created.
type Stats struct {
	Categories  int
	Allergies   int
	Ingredients int
	Recipes     int
}

// Parse decodes a seed document. Unknown keys are an error so a misspelt
// section does not silently seed nothing.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("seed: decoding: %w", err)
	}
	return &f, nil
}

// ParseFile is Parse on a file path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: opening %s: %w", path, err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply writes the file's entities through the repositories in dependency
// order: leaves, then ingredients, then recipes.
func (f *File) Apply(ctx context.Context, repos service.Repositories) (Stats, error) {
	var st Stats

	for _, name := range f.Categories {
		created, err := ensure(ctx, repos.Categories, name, func() (*model.IngredientCategory, error) {
			return model.NewIngredientCategory(name)
		})
		if err != nil {
			return st, err
		}
		st.Categories += created
	}

	for _, name := range f.Allergies {
		created, err := ensure(ctx, repos.Allergies, name, func() (*model.Allergy, error) {
			return model.NewAllergy(name)
		})
		if err != nil {
			return st, err
		}
		st.Allergies += created
	}

	for _, in := range f.Ingredients {
		created, err := ensure(ctx, repos.Ingredients, in.Name, func() (*model.Ingredient, error) {
			category, err := byName(ctx, repos.Categories, model.KindIngredientCategory, in.Category)
			if err != nil {
				return nil, err
			}
			allergies := make([]*model.Allergy, 0, len(in.Allergies))
			for _, a := range in.Allergies {
				allergy, err := byName(ctx, repos.Allergies, model.KindAllergy, a)
				if err != nil {
					return nil, err
				}
				allergies = append(allergies, allergy)
			}
			return model.NewIngredient(in.Name, category, allergies...)
		})
		if err != nil {
			return st, err
		}
		st.Ingredients += created
	}

	for _, in := range f.Recipes {
		created, err := ensure(ctx, repos.Recipes, in.Name, func() (*model.Recipe, error) {
			contents := make([]model.Content, 0, len(in.Contents))
			for _, c := range in.Contents {
				ing, err := byName(ctx, repos.Ingredients, model.KindIngredient, c.Ingredient)
				if err != nil {
					return nil, err
				}
				content, err := model.NewContent(ing, c.Amount, c.Units)
				if err != nil {
					return nil, err
				}
				contents = append(contents, content)
			}
			return model.NewRecipe(in.Name, in.Instructions, contents...)
		})
		if err != nil {
			return st, err
		}
		st.Recipes += created
	}

	return st, nil
}

// ensure saves the entity built by build unless one named name already
// exists. It returns 1 when a row was created.
func ensure[E model.Entity, S any](ctx context.Context, store repository.Store[E, S], name string, build func() (E, error)) (int, error) {
	found, err := store.Exists(ctx, repository.ByName(name))
	if err != nil {
		return 0, fmt.Errorf("seed: checking %q: %w", name, err)
	}
	if found {
		return 0, nil
	}

	e, err := build()
	if err != nil {
		return 0, fmt.Errorf("seed: %q: %w", name, err)
	}
	if _, err := store.Save(ctx, e); err != nil {
		return 0, fmt.Errorf("seed: saving %q: %w", name, err)
	}
	return 1, nil
}

func byName[E model.Entity, S any](ctx context.Context, store repository.Store[E, S], kind model.Kind, name string) (E, error) {
	e, found, err := store.Load(ctx, repository.ByName(name))
	if err != nil {
		return e, err
	}
	if !found {
		return e, apperror.NotFound(kind.Resource(), name)
	}
	return e, nil
}
