package resolve

import (
	"time"

	"github.com/weavelabs/weave/internal/core/model"
)

// HandleContradictoryRelationships retains both sides of a contradiction.
// Each copy gets a conflict_metadata block referencing the other's identity,
// type and confidence, leaving reconciliation to downstream consumers.
func (r *Resolver) HandleContradictoryRelationships(conflict model.Conflict, candidate, existing *model.Relationship) []*model.Relationship {
	now := time.Now().UTC()

	keptExisting := existing.Clone()
	keptExisting.UpdatedAt = now
	annotateContradiction(keptExisting, candidate)

	keptCandidate := candidate.Clone()
	keptCandidate.UpdatedAt = now
	keptCandidate.Confidence = model.ClampConfidence(keptCandidate.Confidence)
	annotateContradiction(keptCandidate, existing)

	return []*model.Relationship{keptExisting, keptCandidate}
}

func annotateContradiction(rel, other *model.Relationship) {
	if rel.ConflictMetadata == nil {
		rel.ConflictMetadata = map[string]interface{}{}
	}
	rel.ConflictMetadata[metaConflictsWith] = map[string]interface{}{
		"id":         other.ID,
		"type":       other.Type,
		"confidence": other.Confidence,
	}
}
