package resolve

import (
	"fmt"

	"github.com/weavelabs/weave/internal/core/model"
)

// Strategy selects how one conflict category is resolved.
type Strategy int

const (
	StrategyUseExisting Strategy = iota
	StrategyUseNewest
	StrategyUseHighestConfidence
	StrategyMergeWithExisting
	StrategyMergeLabels
	StrategyKeepBothWithMetadata
)

func (s Strategy) String() string {
	switch s {
	case StrategyUseExisting:
		return "use_existing"
	case StrategyUseNewest:
		return "use_newest"
	case StrategyUseHighestConfidence:
		return "use_highest_confidence"
	case StrategyMergeWithExisting:
		return "merge_with_existing"
	case StrategyMergeLabels:
		return "merge_labels"
	case StrategyKeepBothWithMetadata:
		return "keep_both_with_metadata"
	}
	return "unknown"
}

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "use_existing":
		return StrategyUseExisting, nil
	case "use_newest":
		return StrategyUseNewest, nil
	case "use_highest_confidence":
		return StrategyUseHighestConfidence, nil
	case "merge_with_existing":
		return StrategyMergeWithExisting, nil
	case "merge_labels":
		return StrategyMergeLabels, nil
	case "keep_both_with_metadata":
		return StrategyKeepBothWithMetadata, nil
	}
	return StrategyUseExisting, fmt.Errorf("unknown resolution strategy %q", s)
}

type Config struct {
	// ConfidenceThreshold gates property conflicts: disagreements between
	// sides whose confidences differ by less than this are treated as
	// extraction noise, not conflicts.
	ConfidenceThreshold float64

	// Strategies maps each conflict category to its resolution strategy.
	Strategies map[model.ConflictType]Strategy

	// ContradictionPairs lists relationship type pairs that contradict each
	// other when found on reversed edges. Pairs are expanded symmetrically.
	ContradictionPairs [][2]string

	// ScalarKeepBoth routes scalar property conflicts through keep-both
	// annotation (existing value stays primary) instead of the
	// highest-confidence pick.
	ScalarKeepBoth bool
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.1,
		Strategies: map[model.ConflictType]Strategy{
			model.ConflictEntityName:                 StrategyUseHighestConfidence,
			model.ConflictEntityType:                 StrategyUseExisting,
			model.ConflictEntityProperty:             StrategyMergeWithExisting,
			model.ConflictRelationshipType:           StrategyUseHighestConfidence,
			model.ConflictRelationshipProperty:       StrategyMergeWithExisting,
			model.ConflictContradictoryRelationships: StrategyKeepBothWithMetadata,
		},
		ContradictionPairs: [][2]string{
			{"OUTPERFORMS", "OUTPERFORMS"},
			{"OUTPERFORMS", "OUTPERFORMED_BY"},
			{"CONFIRMS", "CONTRADICTS"},
			{"PROVES", "DISPROVES"},
		},
		ScalarKeepBoth: false,
	}
}
