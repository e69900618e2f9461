package model

import "time"

type Relationship struct {
	ID               string                 `json:"id"`
	Type             string                 `json:"type"` // OUTPERFORMS, TRAINED_ON, ...
	SourceID         string                 `json:"source_id"`
	TargetID         string                 `json:"target_id"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
	Confidence       float64                `json:"confidence"`
	Source           string                 `json:"source,omitempty"`
	Bidirectional    bool                   `json:"bidirectional,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	ConflictMetadata map[string]interface{} `json:"conflict_metadata,omitempty"`
}

func (r *Relationship) Clone() *Relationship {
	out := *r
	out.Properties = cloneMap(r.Properties)
	out.ConflictMetadata = cloneMap(r.ConflictMetadata)
	return &out
}
