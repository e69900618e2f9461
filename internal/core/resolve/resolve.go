package resolve

import (
	"time"

	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/model"
)

// Metadata keys under which losing values survive resolution.
const (
	metaAlternativeName       = "alternative_name"
	metaAlternativeLabels     = "alternative_labels"
	metaAlternativeType       = "alternative_type"
	metaAlternativeProperties = "alternative_properties"
	metaConflictsWith         = "conflicts_with"
)

func (r *Resolver) strategyFor(t model.ConflictType) Strategy {
	s, ok := r.cfg.Strategies[t]
	if !ok {
		// Unknown conflict types fall back to the least destructive choice.
		r.log.Warn("no strategy configured for conflict type, using use_existing",
			zap.Stringer("conflict_type", t))
		return StrategyUseExisting
	}
	return s
}

// ResolveEntity applies every detected conflict to produce a single resolved
// record. The base is the stored record; candidate-only properties merge in,
// and each conflict is settled per its configured strategy.
func (r *Resolver) ResolveEntity(conflicts []model.Conflict, candidate, existing *model.Entity) *model.Entity {
	resolved := existing.Clone()
	resolved.Confidence = model.ClampConfidence(maxFloat(existing.Confidence, candidate.Confidence))
	resolved.UpdatedAt = time.Now().UTC()
	resolved.Aliases = unionStrings(resolved.Aliases, candidate.Aliases)

	if resolved.Properties == nil {
		resolved.Properties = map[string]interface{}{}
	}
	for k, v := range candidate.Properties {
		if _, taken := resolved.Properties[k]; !taken {
			resolved.Properties[k] = v
		}
	}

	for _, c := range conflicts {
		r.applyEntityConflict(resolved, c, candidate, existing)
	}
	return resolved
}

// ResolveEntityConflict settles a single conflict; see ResolveEntity.
func (r *Resolver) ResolveEntityConflict(conflict model.Conflict, candidate, existing *model.Entity) *model.Entity {
	return r.ResolveEntity([]model.Conflict{conflict}, candidate, existing)
}

// ResolveRelationship is the relationship counterpart of ResolveEntity.
// Contradictions are not resolved here; they go through
// HandleContradictoryRelationships.
func (r *Resolver) ResolveRelationship(conflicts []model.Conflict, candidate, existing *model.Relationship) *model.Relationship {
	resolved := existing.Clone()
	resolved.Confidence = model.ClampConfidence(maxFloat(existing.Confidence, candidate.Confidence))
	resolved.UpdatedAt = time.Now().UTC()

	if resolved.Properties == nil {
		resolved.Properties = map[string]interface{}{}
	}
	for k, v := range candidate.Properties {
		if _, taken := resolved.Properties[k]; !taken {
			resolved.Properties[k] = v
		}
	}

	for _, c := range conflicts {
		if c.Type == model.ConflictContradictoryRelationships {
			continue
		}
		r.applyRelationshipConflict(resolved, c, candidate, existing)
	}
	return resolved
}

func (r *Resolver) ResolveRelationshipConflict(conflict model.Conflict, candidate, existing *model.Relationship) *model.Relationship {
	return r.ResolveRelationship([]model.Conflict{conflict}, candidate, existing)
}

func (r *Resolver) applyEntityConflict(resolved *model.Entity, c model.Conflict, candidate, existing *model.Entity) {
	strategy := r.strategyFor(c.Type)

	switch c.Type {
	case model.ConflictEntityName:
		switch strategy {
		case StrategyUseNewest:
			resolved.Name = candidate.Name
			r.recordLoser(resolved, metaAlternativeName, existing.Name, existing.Confidence, existing.Source)
		case StrategyUseHighestConfidence, StrategyMergeWithExisting:
			if candidate.Confidence > existing.Confidence {
				resolved.Name = candidate.Name
				r.recordLoser(resolved, metaAlternativeName, existing.Name, existing.Confidence, existing.Source)
			} else {
				r.recordLoser(resolved, metaAlternativeName, candidate.Name, candidate.Confidence, candidate.Source)
			}
		case StrategyKeepBothWithMetadata:
			resolved.Aliases = unionStrings(resolved.Aliases, []string{candidate.Name})
			r.recordLoser(resolved, metaAlternativeName, candidate.Name, candidate.Confidence, candidate.Source)
		default: // use_existing, merge_labels
			r.recordLoser(resolved, metaAlternativeName, candidate.Name, candidate.Confidence, candidate.Source)
		}

	case model.ConflictEntityType:
		switch strategy {
		case StrategyMergeLabels, StrategyMergeWithExisting, StrategyKeepBothWithMetadata:
			resolved.Labels = unionStrings(existing.Labels, candidate.Labels)
		case StrategyUseNewest:
			resolved.Labels = append([]string(nil), candidate.Labels...)
			r.recordLoser(resolved, metaAlternativeLabels, existing.Labels, existing.Confidence, existing.Source)
		case StrategyUseHighestConfidence:
			if candidate.Confidence > existing.Confidence {
				resolved.Labels = append([]string(nil), candidate.Labels...)
				r.recordLoser(resolved, metaAlternativeLabels, existing.Labels, existing.Confidence, existing.Source)
			} else {
				r.recordLoser(resolved, metaAlternativeLabels, candidate.Labels, candidate.Confidence, candidate.Source)
			}
		default:
			r.recordLoser(resolved, metaAlternativeLabels, candidate.Labels, candidate.Confidence, candidate.Source)
		}

	case model.ConflictEntityProperty:
		r.applyPropertyConflict(resolved.Properties, resolved, c, strategy)
	}
}

func (r *Resolver) applyRelationshipConflict(resolved *model.Relationship, c model.Conflict, candidate, existing *model.Relationship) {
	strategy := r.strategyFor(c.Type)

	switch c.Type {
	case model.ConflictRelationshipType:
		switch strategy {
		case StrategyUseNewest:
			resolved.Type = candidate.Type
			r.recordRelLoser(resolved, metaAlternativeType, existing.Type, existing.Confidence, existing.Source)
		case StrategyUseHighestConfidence, StrategyMergeWithExisting:
			if candidate.Confidence > existing.Confidence {
				resolved.Type = candidate.Type
				r.recordRelLoser(resolved, metaAlternativeType, existing.Type, existing.Confidence, existing.Source)
			} else {
				r.recordRelLoser(resolved, metaAlternativeType, candidate.Type, candidate.Confidence, candidate.Source)
			}
		default:
			r.recordRelLoser(resolved, metaAlternativeType, candidate.Type, candidate.Confidence, candidate.Source)
		}

	case model.ConflictRelationshipProperty:
		if resolved.ConflictMetadata == nil {
			resolved.ConflictMetadata = map[string]interface{}{}
		}
		r.settleProperty(resolved.Properties, resolved.ConflictMetadata, c, strategy)
	}
}

func (r *Resolver) applyPropertyConflict(props map[string]interface{}, resolved *model.Entity, c model.Conflict, strategy Strategy) {
	if resolved.ConflictMetadata == nil {
		resolved.ConflictMetadata = map[string]interface{}{}
	}
	r.settleProperty(props, resolved.ConflictMetadata, c, strategy)
}

// settleProperty applies the strategy to a single conflicting property and
// records the losing value under alternative_properties.
func (r *Resolver) settleProperty(props, meta map[string]interface{}, c model.Conflict, strategy Strategy) {
	winner, loser, loserConf := c.ExistingValue, c.NewValue, c.NewConfidence

	switch strategy {
	case StrategyUseNewest:
		winner, loser, loserConf = c.NewValue, c.ExistingValue, c.ExistingConfidence
	case StrategyUseHighestConfidence:
		if c.NewConfidence > c.ExistingConfidence {
			winner, loser, loserConf = c.NewValue, c.ExistingValue, c.ExistingConfidence
		}
	case StrategyMergeWithExisting:
		if merged, ok := mergeValues(c.ExistingValue, c.NewValue); ok {
			props[c.Property] = merged
			return
		}
		// Scalars cannot merge. Either keep the stored value as primary or
		// let the higher confidence win, per configuration.
		if !r.cfg.ScalarKeepBoth && c.NewConfidence > c.ExistingConfidence {
			winner, loser, loserConf = c.NewValue, c.ExistingValue, c.ExistingConfidence
		}
	case StrategyKeepBothWithMetadata, StrategyUseExisting, StrategyMergeLabels:
		// existing stays primary
	}

	props[c.Property] = winner
	alts, _ := meta[metaAlternativeProperties].(map[string]interface{})
	if alts == nil {
		alts = map[string]interface{}{}
		meta[metaAlternativeProperties] = alts
	}
	alts[c.Property] = map[string]interface{}{
		"value":      loser,
		"confidence": loserConf,
	}
}

func (r *Resolver) recordLoser(e *model.Entity, key string, value interface{}, conf float64, source string) {
	if e.ConflictMetadata == nil {
		e.ConflictMetadata = map[string]interface{}{}
	}
	e.ConflictMetadata[key] = map[string]interface{}{
		"value":      value,
		"confidence": conf,
		"source":     source,
	}
}

func (r *Resolver) recordRelLoser(rel *model.Relationship, key string, value interface{}, conf float64, source string) {
	if rel.ConflictMetadata == nil {
		rel.ConflictMetadata = map[string]interface{}{}
	}
	rel.ConflictMetadata[key] = map[string]interface{}{
		"value":      value,
		"confidence": conf,
		"source":     source,
	}
}

// mergeValues unions two maps (candidate overriding on key collision) or two
// lists (set union). Scalars do not merge.
func mergeValues(existing, candidate interface{}) (interface{}, bool) {
	if em, ok := existing.(map[string]interface{}); ok {
		if cm, ok := candidate.(map[string]interface{}); ok {
			out := make(map[string]interface{}, len(em)+len(cm))
			for k, v := range em {
				out[k] = v
			}
			for k, v := range cm {
				out[k] = v
			}
			return out, true
		}
	}
	if el, ok := toList(existing); ok {
		if cl, ok := toList(candidate); ok {
			out := append([]interface{}(nil), el...)
			for _, v := range cl {
				if !containsValue(out, v) {
					out = append(out, v)
				}
			}
			return out, true
		}
	}
	return nil, false
}

func toList(v interface{}) ([]interface{}, bool) {
	switch vv := v.(type) {
	case []interface{}:
		return vv, true
	case []string:
		out := make([]interface{}, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, x := range list {
		if valuesEqual(x, v) {
			return true
		}
	}
	return false
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
