package model

import "fmt"

// ConflictType is a closed enum of disagreement categories. Dispatch is done
// by exhaustive switch, never by string comparison.
type ConflictType int

const (
	ConflictEntityName ConflictType = iota
	ConflictEntityType
	ConflictEntityProperty
	ConflictRelationshipType
	ConflictRelationshipProperty
	ConflictContradictoryRelationships
)

func (t ConflictType) String() string {
	switch t {
	case ConflictEntityName:
		return "entity_name"
	case ConflictEntityType:
		return "entity_type"
	case ConflictEntityProperty:
		return "entity_property"
	case ConflictRelationshipType:
		return "relationship_type"
	case ConflictRelationshipProperty:
		return "relationship_property"
	case ConflictContradictoryRelationships:
		return "contradictory_relationships"
	}
	return "unknown"
}

func (t ConflictType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ConflictType) UnmarshalText(text []byte) error {
	parsed, err := ParseConflictType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func ParseConflictType(s string) (ConflictType, error) {
	for _, t := range []ConflictType{
		ConflictEntityName, ConflictEntityType, ConflictEntityProperty,
		ConflictRelationshipType, ConflictRelationshipProperty,
		ConflictContradictoryRelationships,
	} {
		if t.String() == s {
			return t, nil
		}
	}
	return ConflictEntityName, fmt.Errorf("unknown conflict type %q", s)
}

// Conflict records one detected disagreement between a candidate record and
// an already-stored one. Conflicts are never dropped: each is either resolved
// into an annotated merged record or explicitly retained as keep-both.
type Conflict struct {
	Type               ConflictType `json:"type"`
	ExistingID         string       `json:"existing_id"`
	CandidateID        string       `json:"candidate_id"`
	Property           string       `json:"property,omitempty"` // set for property conflicts
	ExistingValue      interface{}  `json:"existing_value,omitempty"`
	NewValue           interface{}  `json:"new_value,omitempty"`
	ExistingConfidence float64      `json:"existing_confidence"`
	NewConfidence      float64      `json:"new_confidence"`
}
