package core

import (
	"context"
	"errors"

	"github.com/weavelabs/weave/internal/core/model"
	"github.com/weavelabs/weave/internal/store"
)

// failingStore wraps a real store and fails writes for selected record ids,
// or the full-snapshot reads when failSnapshot is set.
type failingStore struct {
	store.Store
	failEntityIDs       map[string]bool
	failRelationshipIDs map[string]bool
	failSnapshot        bool
}

var errInjected = errors.New("injected store failure")

func (s *failingStore) AddEntity(ctx context.Context, e *model.Entity) (string, error) {
	if s.failEntityIDs[e.ID] {
		return "", errInjected
	}
	return s.Store.AddEntity(ctx, e)
}

func (s *failingStore) AddRelationship(ctx context.Context, r *model.Relationship) (string, error) {
	if s.failRelationshipIDs[r.ID] {
		return "", errInjected
	}
	return s.Store.AddRelationship(ctx, r)
}

func (s *failingStore) AllEntities(ctx context.Context) ([]*model.Entity, error) {
	if s.failSnapshot {
		return nil, errInjected
	}
	return s.Store.AllEntities(ctx)
}
