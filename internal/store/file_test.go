package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavelabs/weave/internal/core/model"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestFileStoreEntityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &model.Entity{
		ID:     "bert",
		Name:   "BERT",
		Labels: []string{"Model", "Architecture"},
		Properties: map[string]interface{}{
			"year":   2018.0,
			"params": "340M",
		},
		Confidence: 0.9,
		Source:     "paper-1",
		Aliases:    []string{"bert-large"},
	}
	id, err := s.AddEntity(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "bert", id)

	got, err := s.GetEntity(ctx, "bert")
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Labels, got.Labels)
	assert.Equal(t, e.Aliases, got.Aliases)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, "340M", got.Properties["params"])
}

func TestFileStoreClampsConfidenceOnWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddEntity(ctx, &model.Entity{ID: "x", Name: "X", Labels: []string{"Model"}, Confidence: 2.5})
	require.NoError(t, err)

	got, err := s.GetEntity(ctx, "x")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
}

func TestFileStoreRejectsUnlabeledEntity(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddEntity(context.Background(), &model.Entity{ID: "x", Name: "X"})
	assert.Error(t, err)
}

func TestFileStoreGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetEntity(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRelationship(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddEntity(ctx, &model.Entity{ID: "bert", Name: "BERT", Labels: []string{"Model"}, Confidence: 0.6})
	require.NoError(t, err)
	_, err = s.AddEntity(ctx, &model.Entity{ID: "bert", Name: "BERT Large", Labels: []string{"Model"}, Confidence: 0.8})
	require.NoError(t, err)

	got, err := s.GetEntity(ctx, "bert")
	require.NoError(t, err)
	assert.Equal(t, "BERT Large", got.Name)

	all, err := s.AllEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFileStoreFindEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*model.Entity{
		{ID: "bert", Name: "BERT", Labels: []string{"Model"}, Properties: map[string]interface{}{"year": "2018"}},
		{ID: "gpt", Name: "GPT", Labels: []string{"Model"}, Properties: map[string]interface{}{"year": "2018"}},
		{ID: "squad", Name: "SQuAD", Labels: []string{"Dataset"}},
	}
	for _, e := range seed {
		_, err := s.AddEntity(ctx, e)
		require.NoError(t, err)
	}

	models, err := s.FindEntities(ctx, Filter{"label": "Model"}, 0)
	require.NoError(t, err)
	assert.Len(t, models, 2)

	byName, err := s.FindEntities(ctx, Filter{"name": "SQuAD"}, 0)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "squad", byName[0].ID)

	byProp, err := s.FindEntities(ctx, Filter{"year": "2018", "label": "Model"}, 1)
	require.NoError(t, err)
	assert.Len(t, byProp, 1, "limit caps the result")

	none, err := s.FindEntities(ctx, Filter{"label": "Benchmark"}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileStoreFindRelationships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rels := []*model.Relationship{
		{ID: "r1", Type: "USES", SourceID: "bert", TargetID: "squad", Confidence: 0.8},
		{ID: "r2", Type: "USES", SourceID: "gpt", TargetID: "squad", Confidence: 0.8},
		{ID: "r3", Type: "OUTPERFORMS", SourceID: "gpt", TargetID: "bert", Confidence: 0.7},
	}
	for _, r := range rels {
		_, err := s.AddRelationship(ctx, r)
		require.NoError(t, err)
	}

	uses, err := s.FindRelationships(ctx, Filter{"type": "USES"}, 0)
	require.NoError(t, err)
	assert.Len(t, uses, 2)

	fromGPT, err := s.FindRelationships(ctx, Filter{"source_id": "gpt", "type": "USES"}, 0)
	require.NoError(t, err)
	require.Len(t, fromGPT, 1)
	assert.Equal(t, "r2", fromGPT[0].ID)
}

func TestFileStoreFindPaths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*model.Entity{
		{ID: "a", Name: "A", Labels: []string{"Model"}},
		{ID: "b", Name: "B", Labels: []string{"Dataset"}},
		{ID: "c", Name: "C", Labels: []string{"Benchmark"}},
	} {
		_, err := s.AddEntity(ctx, e)
		require.NoError(t, err)
	}
	for _, r := range []*model.Relationship{
		{ID: "r1", Type: "USES", SourceID: "a", TargetID: "b", Confidence: 0.8},
		{ID: "r2", Type: "PART_OF", SourceID: "b", TargetID: "c", Confidence: 0.8},
	} {
		_, err := s.AddRelationship(ctx, r)
		require.NoError(t, err)
	}

	paths, err := s.FindPaths(ctx, "a", "c", 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	p := paths[0]
	require.Len(t, p, 5) // entity, rel, entity, rel, entity
	assert.Equal(t, "a", p[0].Entity.ID)
	assert.Equal(t, "r1", p[1].Relationship.ID)
	assert.Equal(t, "b", p[2].Entity.ID)
	assert.Equal(t, "r2", p[3].Relationship.ID)
	assert.Equal(t, "c", p[4].Entity.ID)

	// Too shallow a depth bound finds nothing.
	paths, err = s.FindPaths(ctx, "a", "c", 1)
	require.NoError(t, err)
	assert.Empty(t, paths)

	// Direction matters for directed relationships.
	paths, err = s.FindPaths(ctx, "c", "a", 3)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFileStoreFindPathsBidirectional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*model.Entity{
		{ID: "a", Name: "A", Labels: []string{"Model"}},
		{ID: "b", Name: "B", Labels: []string{"Model"}},
	} {
		_, err := s.AddEntity(ctx, e)
		require.NoError(t, err)
	}
	_, err := s.AddRelationship(ctx, &model.Relationship{
		ID: "r1", Type: "RELATED_TO", SourceID: "a", TargetID: "b", Bidirectional: true, Confidence: 0.6,
	})
	require.NoError(t, err)

	paths, err := s.FindPaths(ctx, "b", "a", 2)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestFileStoreVersionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	versions := []*model.Version{
		{
			VersionID: "v1", LogicalID: "bert", Kind: model.KindEntity,
			Branch: model.DefaultBranch, ChangeType: model.ChangeCreate,
			ValidFrom: from, ValidTo: &to, SuccessorIDs: []string{"v2"},
			InitialConfidence: 0.8,
			Entity:            &model.Entity{ID: "bert", Name: "BERT", Labels: []string{"Model"}},
		},
		{
			VersionID: "v2", LogicalID: "bert", Kind: model.KindEntity,
			Branch: model.DefaultBranch, ChangeType: model.ChangeUpdate,
			ValidFrom: to, PredecessorID: "v1", IsCurrent: true,
			InitialConfidence: 0.9,
			Entity:            &model.Entity{ID: "bert", Name: "BERT", Labels: []string{"Model"}},
		},
	}
	require.NoError(t, s.SaveVersions(ctx, versions))

	loaded, err := s.LoadVersions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byID := map[string]*model.Version{}
	for _, v := range loaded {
		byID[v.VersionID] = v
	}
	require.NotNil(t, byID["v1"].ValidTo)
	assert.True(t, byID["v1"].ValidTo.Equal(to))
	assert.Equal(t, []string{"v2"}, byID["v1"].SuccessorIDs)
	assert.Equal(t, "v1", byID["v2"].PredecessorID)
	assert.True(t, byID["v2"].IsCurrent)
	assert.Equal(t, model.KindEntity, byID["v2"].Kind)
	require.NotNil(t, byID["v2"].Entity)
	assert.Equal(t, "BERT", byID["v2"].Entity.Name)

	// Overwriting a version's file replaces, not duplicates, it.
	versions[1].InitialConfidence = 0.95
	require.NoError(t, s.SaveVersions(ctx, versions))
	loaded, err = s.LoadVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	require.NoError(t, s.Clear(ctx, true))
	loaded, err = s.LoadVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStoreClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddEntity(ctx, &model.Entity{ID: "bert", Name: "BERT", Labels: []string{"Model"}})
	require.NoError(t, err)
	_, err = s.AddConnection(ctx, &model.Connection{
		Type: model.ConnectionCommonIntermediary, EntityA: "a", EntityB: "b", Confidence: 0.7,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Clear(ctx, false), ErrNotConfirmed)
	_, err = s.GetEntity(ctx, "bert")
	require.NoError(t, err, "unconfirmed clear leaves data intact")

	require.NoError(t, s.Clear(ctx, true))
	_, err = s.GetEntity(ctx, "bert")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.AllEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
