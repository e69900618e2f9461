package core

import (
	"context"

	"github.com/weavelabs/weave/internal/core/model"
)

// GapReport categorizes missing knowledge in the current graph.
type GapReport struct {
	IsolatedEntities      []string       `json:"isolated_entities"`
	SparseTypes           map[string]int `json:"sparse_types"`
	ResearchOpportunities []string       `json:"research_opportunities"`
}

// GapAnalyzer is the gap-analysis collaborator. The engine only forwards the
// current snapshot to it; the analysis itself lives outside this subsystem.
type GapAnalyzer interface {
	AnalyzeGaps(ctx context.Context, entities []*model.Entity, relationships []*model.Relationship) (*GapReport, error)
}

type noopGapAnalyzer struct{}

func (noopGapAnalyzer) AnalyzeGaps(context.Context, []*model.Entity, []*model.Relationship) (*GapReport, error) {
	return &GapReport{SparseTypes: map[string]int{}}, nil
}
