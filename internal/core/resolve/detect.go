// Package resolve detects disagreements between candidate records and stored
// ones and resolves them without losing either side: every discarded value is
// retained under the surviving record's conflict metadata.
package resolve

import (
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/model"
)

type Resolver struct {
	cfg Config
	// contradictions[a][b] is true when a reversed edge of type a
	// contradicts a candidate of type b.
	contradictions map[string]map[string]bool
	log            *zap.Logger
}

func NewResolver(cfg Config, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	table := make(map[string]map[string]bool)
	add := func(a, b string) {
		if table[a] == nil {
			table[a] = make(map[string]bool)
		}
		table[a][b] = true
	}
	for _, pair := range cfg.ContradictionPairs {
		add(pair[0], pair[1])
		add(pair[1], pair[0])
	}
	return &Resolver{cfg: cfg, contradictions: table, log: log}
}

// DetectEntityConflicts compares a candidate against the stored record for
// the same logical identity.
func (r *Resolver) DetectEntityConflicts(candidate, existing *model.Entity) []model.Conflict {
	if candidate == nil || existing == nil {
		return nil
	}
	var conflicts []model.Conflict

	if candidate.Name != existing.Name {
		conflicts = append(conflicts, model.Conflict{
			Type:               model.ConflictEntityName,
			ExistingID:         existing.ID,
			CandidateID:        candidate.ID,
			ExistingValue:      existing.Name,
			NewValue:           candidate.Name,
			ExistingConfidence: existing.Confidence,
			NewConfidence:      candidate.Confidence,
		})
	}

	if !sameLabelSet(candidate.Labels, existing.Labels) {
		conflicts = append(conflicts, model.Conflict{
			Type:               model.ConflictEntityType,
			ExistingID:         existing.ID,
			CandidateID:        candidate.ID,
			ExistingValue:      existing.Labels,
			NewValue:           candidate.Labels,
			ExistingConfidence: existing.Confidence,
			NewConfidence:      candidate.Confidence,
		})
	}

	conflicts = append(conflicts, r.propertyConflicts(
		model.ConflictEntityProperty, existing.ID, candidate.ID,
		existing.Properties, candidate.Properties,
		existing.Confidence, candidate.Confidence)...)

	return conflicts
}

// DetectRelationshipConflicts compares a candidate against every stored
// relationship sharing its endpoints. A reversed edge whose type forms a
// known contradictory pair with the candidate's is flagged as a
// contradiction, not a plain type conflict.
func (r *Resolver) DetectRelationshipConflicts(candidate *model.Relationship, existing []*model.Relationship) []model.Conflict {
	if candidate == nil {
		return nil
	}
	var conflicts []model.Conflict

	for _, ex := range existing {
		switch {
		case ex.SourceID == candidate.SourceID && ex.TargetID == candidate.TargetID:
			if ex.Type != candidate.Type {
				conflicts = append(conflicts, model.Conflict{
					Type:               model.ConflictRelationshipType,
					ExistingID:         ex.ID,
					CandidateID:        candidate.ID,
					ExistingValue:      ex.Type,
					NewValue:           candidate.Type,
					ExistingConfidence: ex.Confidence,
					NewConfidence:      candidate.Confidence,
				})
				continue
			}
			conflicts = append(conflicts, r.propertyConflicts(
				model.ConflictRelationshipProperty, ex.ID, candidate.ID,
				ex.Properties, candidate.Properties,
				ex.Confidence, candidate.Confidence)...)

		case ex.SourceID == candidate.TargetID && ex.TargetID == candidate.SourceID:
			if r.Contradicts(ex.Type, candidate.Type) {
				conflicts = append(conflicts, model.Conflict{
					Type:               model.ConflictContradictoryRelationships,
					ExistingID:         ex.ID,
					CandidateID:        candidate.ID,
					ExistingValue:      ex.Type,
					NewValue:           candidate.Type,
					ExistingConfidence: ex.Confidence,
					NewConfidence:      candidate.Confidence,
				})
			}
		}
	}
	return conflicts
}

// Contradicts reports whether a reversed stored edge of type existingType
// contradicts a candidate of type candidateType.
func (r *Resolver) Contradicts(existingType, candidateType string) bool {
	return r.contradictions[existingType][candidateType]
}

func (r *Resolver) propertyConflicts(kind model.ConflictType, existingID, candidateID string,
	existingProps, candidateProps map[string]interface{}, existingConf, candidateConf float64) []model.Conflict {

	diff := existingConf - candidateConf
	if diff < 0 {
		diff = -diff
	}
	if diff < r.cfg.ConfidenceThreshold {
		return nil
	}

	keys := make([]string, 0, len(candidateProps))
	for key := range candidateProps {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var conflicts []model.Conflict
	for _, key := range keys {
		newVal := candidateProps[key]
		oldVal, ok := existingProps[key]
		if !ok || valuesEqual(oldVal, newVal) {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			Type:               kind,
			ExistingID:         existingID,
			CandidateID:        candidateID,
			Property:           key,
			ExistingValue:      oldVal,
			NewValue:           newVal,
			ExistingConfidence: existingConf,
			NewConfidence:      candidateConf,
		})
	}
	return conflicts
}

func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

func sameLabelSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, l := range a {
		set[l] = true
	}
	for _, l := range b {
		if !set[l] {
			return false
		}
	}
	return true
}
