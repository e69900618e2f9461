// Package temporal versions every accepted mutation of an entity or
// relationship. Versions are immutable once written: superseding a version
// swaps in a closed copy rather than editing the stored record.
package temporal

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/model"
)

type Tracker struct {
	mu        sync.Mutex
	chains    map[string][]*model.Version // logical id -> versions, oldest first
	byVersion map[string]*model.Version
	decayRate float64
	log       *zap.Logger

	// now is swapped in tests to control version timestamps.
	now func() time.Time
}

func NewTracker(decayRate float64, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		chains:    make(map[string][]*model.Version),
		byVersion: make(map[string]*model.Version),
		decayRate: decayRate,
		log:       log,
		now:       time.Now,
	}
}

// TrackEntityChange appends a new version for the entity's logical identity.
// When prev is supplied, its open validity is closed and linked to the new
// version before the new one opens.
func (t *Tracker) TrackEntityChange(e *model.Entity, prev *model.Version, source string, change model.ChangeType) (string, error) {
	return t.track(model.KindEntity, e.ID, e.Clone(), nil, prev, source, change, e.Confidence)
}

func (t *Tracker) TrackRelationshipChange(r *model.Relationship, prev *model.Version, source string, change model.ChangeType) (string, error) {
	return t.track(model.KindRelationship, r.ID, nil, r.Clone(), prev, source, change, r.Confidence)
}

func (t *Tracker) track(kind model.RecordKind, logicalID string, ent *model.Entity, rel *model.Relationship,
	prev *model.Version, source string, change model.ChangeType, confidence float64) (string, error) {

	if logicalID == "" {
		return "", fmt.Errorf("cannot track %s change without a logical id", kind)
	}

	// The lock serializes version creation per logical identity: at most one
	// version is ever opened from the same predecessor.
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	branch := model.DefaultBranch
	versionID := uuid.New().String()

	var predecessorID string
	if prev != nil {
		stored, ok := t.byVersion[prev.VersionID]
		if !ok {
			return "", fmt.Errorf("unknown predecessor version %s", prev.VersionID)
		}
		if stored.LogicalID != logicalID {
			return "", fmt.Errorf("predecessor %s belongs to %s, not %s", prev.VersionID, stored.LogicalID, logicalID)
		}
		if stored.ValidTo != nil {
			return "", fmt.Errorf("predecessor %s is already superseded", prev.VersionID)
		}
		branch = stored.Branch
		predecessorID = stored.VersionID

		closed := stored.Clone()
		closed.ValidTo = &now
		closed.IsCurrent = false
		closed.SuccessorIDs = append(closed.SuccessorIDs, versionID)
		t.replace(stored, closed)
	}

	v := &model.Version{
		VersionID:         versionID,
		LogicalID:         logicalID,
		Kind:              kind,
		Branch:            branch,
		ChangeType:        change,
		ChangeSource:      source,
		ValidFrom:         now,
		PredecessorID:     predecessorID,
		IsCurrent:         true,
		InitialConfidence: model.ClampConfidence(confidence),
		DecayRate:         t.decayRate,
		Entity:            ent,
		Relationship:      rel,
	}
	t.chains[logicalID] = append(t.chains[logicalID], v)
	t.byVersion[versionID] = v
	return versionID, nil
}

func (t *Tracker) replace(old, updated *model.Version) {
	chain := t.chains[old.LogicalID]
	for i, v := range chain {
		if v.VersionID == old.VersionID {
			chain[i] = updated
			break
		}
	}
	t.byVersion[old.VersionID] = updated
}

// Load rebuilds the chains from previously persisted versions. It replaces
// nothing already tracked, so it is meant for startup on an empty tracker.
func (t *Tracker) Load(versions []*model.Version) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, v := range versions {
		if _, exists := t.byVersion[v.VersionID]; exists {
			continue
		}
		c := v.Clone()
		t.chains[c.LogicalID] = append(t.chains[c.LogicalID], c)
		t.byVersion[c.VersionID] = c
	}
	for _, chain := range t.chains {
		sort.SliceStable(chain, func(i, j int) bool {
			return chain[i].ValidFrom.Before(chain[j].ValidFrom)
		})
	}
}

// History returns every version of the logical identity, oldest first.
func (t *Tracker) History(logicalID string) []*model.Version {
	t.mu.Lock()
	defer t.mu.Unlock()

	chain := t.chains[logicalID]
	out := make([]*model.Version, 0, len(chain))
	for _, v := range chain {
		out = append(out, v.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ValidFrom.Before(out[j].ValidFrom)
	})
	return out
}

// Current returns the open version for the logical identity on the default
// branch, or nil when no version is open.
func (t *Tracker) Current(logicalID string) *model.Version {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.chains[logicalID]) - 1; i >= 0; i-- {
		v := t.chains[logicalID][i]
		if v.IsCurrent && v.Branch == model.DefaultBranch {
			return v.Clone()
		}
	}
	return nil
}

// Reset drops every version chain. Used after the knowledge store itself is
// cleared.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chains = make(map[string][]*model.Version)
	t.byVersion = make(map[string]*model.Version)
}

// VersionCount reports the total number of stored versions.
func (t *Tracker) VersionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, chain := range t.chains {
		n += len(chain)
	}
	return n
}
