package model

// Wire shapes produced by the extraction pipeline. The engine only consumes
// this typed output; how the records were extracted is not its concern.

type ExtractedEntity struct {
	ID          string                 `json:"id,omitempty"`
	Text        string                 `json:"text,omitempty"` // surface form in the document
	Name        string                 `json:"name,omitempty"`
	Type        string                 `json:"type"`
	Confidence  float64                `json:"confidence"`
	StartOffset int                    `json:"start_offset,omitempty"`
	EndOffset   int                    `json:"end_offset,omitempty"`
	Source      string                 `json:"source,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type ExtractedRelationship struct {
	ID           string                 `json:"id,omitempty"`
	SourceID     string                 `json:"source"`
	TargetID     string                 `json:"target"`
	RelationType string                 `json:"relation_type"`
	Confidence   float64                `json:"confidence"`
	Context      string                 `json:"context,omitempty"` // sentence the relation was read from
	Source       string                 `json:"source,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
