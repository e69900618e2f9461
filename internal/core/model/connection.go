package model

import "fmt"

// ConnectionType is a closed enum of discovery methods.
type ConnectionType int

const (
	ConnectionCommonIntermediary ConnectionType = iota
	ConnectionSimilarRelationship
	ConnectionSharedProperty
	ConnectionTransitiveRelation
)

func (t ConnectionType) String() string {
	switch t {
	case ConnectionCommonIntermediary:
		return "common_intermediary"
	case ConnectionSimilarRelationship:
		return "similar_relationship"
	case ConnectionSharedProperty:
		return "shared_property"
	case ConnectionTransitiveRelation:
		return "transitive_relation"
	}
	return "unknown"
}

func (t ConnectionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ConnectionType) UnmarshalText(text []byte) error {
	for _, known := range []ConnectionType{
		ConnectionCommonIntermediary, ConnectionSimilarRelationship,
		ConnectionSharedProperty, ConnectionTransitiveRelation,
	} {
		if known.String() == string(text) {
			*t = known
			return nil
		}
	}
	return fmt.Errorf("unknown connection type %q", text)
}

// RelationshipType is the edge type used when a connection is materialized
// as a low-confidence relationship.
func (t ConnectionType) RelationshipType() string {
	switch t {
	case ConnectionCommonIntermediary:
		return "COMMON_INTERMEDIARY"
	case ConnectionSimilarRelationship:
		return "SIMILAR_RELATIONSHIP"
	case ConnectionSharedProperty:
		return "SHARED_PROPERTY"
	case ConnectionTransitiveRelation:
		return "TRANSITIVE_RELATION"
	}
	return "RELATED_TO"
}

// Connection is a derived, non-explicit relationship suggested by graph
// analysis. It never overwrites existing relationships; the coordinator may
// persist it as a new low-confidence relationship.
type Connection struct {
	Type        ConnectionType `json:"type"`
	EntityA     string         `json:"entity_a"`
	EntityB     string         `json:"entity_b"`
	Via         string         `json:"via,omitempty"` // intermediate identity where applicable
	Confidence  float64        `json:"confidence"`
	Description string         `json:"description"`
}
