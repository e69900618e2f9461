package core

import (
	"context"
	"fmt"
	"time"

	"github.com/weavelabs/weave/internal/core/model"
	"github.com/weavelabs/weave/internal/core/temporal"
	"github.com/weavelabs/weave/internal/store"
)

const (
	QueryEntities      = "entity"
	QueryRelationships = "relationship"
	QueryPaths         = "path"
)

type Query struct {
	Type     string       `json:"query_type"`
	Filters  store.Filter `json:"filters,omitempty"`
	SourceID string       `json:"source_id,omitempty"` // path queries
	TargetID string       `json:"target_id,omitempty"`
	MaxDepth int          `json:"max_depth,omitempty"`
	Limit    int          `json:"limit,omitempty"`
}

type QueryResult struct {
	Entities      []*model.Entity       `json:"entities,omitempty"`
	Relationships []*model.Relationship `json:"relationships,omitempty"`
	Paths         []store.Path          `json:"paths,omitempty"`
	Count         int                   `json:"count"`
}

func (e *Engine) Query(ctx context.Context, q Query) (*QueryResult, error) {
	switch q.Type {
	case QueryEntities:
		entities, err := e.Store.FindEntities(ctx, q.Filters, q.Limit)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Entities: entities, Count: len(entities)}, nil
	case QueryRelationships:
		relationships, err := e.Store.FindRelationships(ctx, q.Filters, q.Limit)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Relationships: relationships, Count: len(relationships)}, nil
	case QueryPaths:
		depth := q.MaxDepth
		if depth <= 0 {
			depth = 3
		}
		paths, err := e.Store.FindPaths(ctx, q.SourceID, q.TargetID, depth)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Paths: paths, Count: len(paths)}, nil
	}
	return nil, fmt.Errorf("unknown query type %q", q.Type)
}

func (e *Engine) EntityHistory(id string) []*model.Version {
	return e.Tracker.History(id)
}

func (e *Engine) RelationshipHistory(id string) []*model.Version {
	return e.Tracker.History(id)
}

func (e *Engine) AnalyzeEvolution(id string) (*temporal.Evolution, error) {
	return e.Tracker.AnalyzeEvolution(id)
}

// StateAt reconstructs the graph as of the given instant from the version
// chains.
func (e *Engine) StateAt(ts time.Time) *temporal.GraphState {
	return e.Tracker.StateAt(ts)
}

type Statistics struct {
	Backend             string         `json:"backend"`
	EntityCount         int            `json:"entity_count"`
	RelationshipCount   int            `json:"relationship_count"`
	EntitiesByLabel     map[string]int `json:"entities_by_label"`
	RelationshipsByType map[string]int `json:"relationships_by_type"`
	VersionCount        int            `json:"version_count"`
}

func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	entities, err := e.Store.AllEntities(ctx)
	if err != nil {
		return nil, err
	}
	relationships, err := e.Store.AllRelationships(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Backend:             e.Store.Name(),
		EntityCount:         len(entities),
		RelationshipCount:   len(relationships),
		EntitiesByLabel:     map[string]int{},
		RelationshipsByType: map[string]int{},
		VersionCount:        e.Tracker.VersionCount(),
	}
	for _, ent := range entities {
		for _, label := range ent.Labels {
			stats.EntitiesByLabel[label]++
		}
	}
	for _, rel := range relationships {
		stats.RelationshipsByType[rel.Type]++
	}
	return stats, nil
}

// Clear wipes the knowledge store and version chains. Refuses to act without
// explicit confirmation.
func (e *Engine) Clear(ctx context.Context, confirm bool) error {
	if err := e.Store.Clear(ctx, confirm); err != nil {
		return err
	}
	e.Tracker.Reset()
	return nil
}

func (e *Engine) KnowledgeGaps(ctx context.Context) (*GapReport, error) {
	entities, err := e.Store.AllEntities(ctx)
	if err != nil {
		return nil, err
	}
	relationships, err := e.Store.AllRelationships(ctx)
	if err != nil {
		return nil, err
	}
	return e.Gaps.AnalyzeGaps(ctx, entities, relationships)
}
