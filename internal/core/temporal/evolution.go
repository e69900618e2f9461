package temporal

import (
	"fmt"
	"sort"
	"time"

	"github.com/weavelabs/weave/internal/core/model"
)

// Evolution summarizes how one logical identity changed over time.
type Evolution struct {
	LogicalID         string    `json:"logical_id"`
	Kind              string    `json:"kind"`
	FirstSeen         time.Time `json:"first_seen"`
	LastUpdated       time.Time `json:"last_updated"`
	VersionCount      int       `json:"version_count"`
	Branches          []string  `json:"branches"`
	ChangeSources     []string  `json:"change_sources"`
	InitialConfidence float64   `json:"initial_confidence"`
	CurrentConfidence float64   `json:"current_confidence"`
}

// AnalyzeEvolution builds an evolution summary for the logical identity.
func (t *Tracker) AnalyzeEvolution(logicalID string) (*Evolution, error) {
	history := t.History(logicalID)
	if len(history) == 0 {
		return nil, fmt.Errorf("no versions tracked for %s", logicalID)
	}

	first := history[0]
	last := history[len(history)-1]

	branches := map[string]bool{}
	sources := map[string]bool{}
	for _, v := range history {
		branches[v.Branch] = true
		if v.ChangeSource != "" {
			sources[v.ChangeSource] = true
		}
	}

	ev := &Evolution{
		LogicalID:         logicalID,
		Kind:              first.Kind.String(),
		FirstSeen:         first.ValidFrom,
		LastUpdated:       last.ValidFrom,
		VersionCount:      len(history),
		InitialConfidence: first.InitialConfidence,
		CurrentConfidence: last.ConfidenceAt(t.now().UTC()),
	}
	for b := range branches {
		ev.Branches = append(ev.Branches, b)
	}
	for s := range sources {
		ev.ChangeSources = append(ev.ChangeSources, s)
	}
	sort.Strings(ev.Branches)
	sort.Strings(ev.ChangeSources)
	return ev, nil
}

// GraphState is a reconstruction of the graph as of one instant.
type GraphState struct {
	Timestamp     time.Time                      `json:"timestamp"`
	Entities      map[string]*model.Entity       `json:"entities"`
	Relationships map[string]*model.Relationship `json:"relationships"`
}

// StateAt selects, per logical identity, the version whose validity interval
// contains ts. Identities with no such version did not exist, or were not
// alive, at ts and are absent from the result.
func (t *Tracker) StateAt(ts time.Time) *GraphState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := &GraphState{
		Timestamp:     ts,
		Entities:      make(map[string]*model.Entity),
		Relationships: make(map[string]*model.Relationship),
	}
	for logicalID, chain := range t.chains {
		var alive *model.Version
		for _, v := range chain {
			if !v.Contains(ts) {
				continue
			}
			// Prefer the default branch when parallel lines both cover ts.
			if alive == nil || (alive.Branch != model.DefaultBranch && v.Branch == model.DefaultBranch) {
				alive = v
			}
		}
		if alive == nil {
			continue
		}
		switch alive.Kind {
		case model.KindEntity:
			state.Entities[logicalID] = alive.Entity.Clone()
		case model.KindRelationship:
			state.Relationships[logicalID] = alive.Relationship.Clone()
		}
	}
	return state
}
