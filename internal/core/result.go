package core

import "github.com/weavelabs/weave/internal/core/model"

// Failure pairs a record that could not be processed with the reason, so
// callers can retry selectively.
type Failure struct {
	ID     string      `json:"id,omitempty"`
	Record interface{} `json:"record,omitempty"`
	Reason string      `json:"reason"`
}

// Result is the structured outcome of one ingestion batch. Per-record
// failures are reported here, never raised as batch errors.
type Result struct {
	IntegratedEntities      int                `json:"integrated_entities"`
	FailedEntities          []Failure          `json:"failed_entities"`
	IntegratedRelationships int                `json:"integrated_relationships"`
	FailedRelationships     []Failure          `json:"failed_relationships"`
	DiscoveredConnections   int                `json:"discovered_connections"`
	Connections             []model.Connection `json:"connections,omitempty"`
	FailedConnections       []Failure          `json:"failed_connections"`
	EntityConflicts         []model.Conflict   `json:"entity_conflicts"`
	RelationshipConflicts   []model.Conflict   `json:"relationship_conflicts"`
}
