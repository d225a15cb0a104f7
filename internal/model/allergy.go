package model

import "encoding/json"

// Allergy is something an ingredient may cause and a user may want to avoid.
type Allergy struct {
	Identity
}

func NewAllergy(name string) (*Allergy, error) {
	id, err := newIdentity(name)
	if err != nil {
		return nil, err
	}
	return &Allergy{Identity: id}, nil
}

func (a *Allergy) Kind() Kind { return KindAllergy }

func (a *Allergy) Projection() map[string]any {
	return map[string]any{
		"id":   a.projectionID(),
		"name": a.Name(),
	}
}

func (a *Allergy) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Projection())
}
