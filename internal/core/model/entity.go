package model

import "time"

type Entity struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Labels           []string               `json:"labels"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
	Confidence       float64                `json:"confidence"`
	Source           string                 `json:"source,omitempty"`
	Aliases          []string               `json:"aliases,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	ConflictMetadata map[string]interface{} `json:"conflict_metadata,omitempty"`
}

// ClampConfidence forces confidence into [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func (e *Entity) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Resolution and version tracking operate on
// copies so stored records are never mutated in place.
func (e *Entity) Clone() *Entity {
	out := *e
	out.Labels = append([]string(nil), e.Labels...)
	out.Aliases = append([]string(nil), e.Aliases...)
	out.Properties = cloneMap(e.Properties)
	out.ConflictMetadata = cloneMap(e.ConflictMetadata)
	return &out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]interface{}:
			out[k] = cloneMap(vv)
		case []interface{}:
			out[k] = append([]interface{}(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}
