// Package store defines the storage contract the integration engine consumes
// and its two implementations: a property-graph backend spoken to over bolt,
// and a local JSON-file fallback used when the backend is unreachable.
package store

import (
	"context"
	"errors"

	"github.com/weavelabs/weave/internal/core/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrNotConfirmed = errors.New("clear requires confirmation")
)

// Filter matches records by field values. Recognized keys for entities are
// "id", "name" and "label"; for relationships "id", "type", "source_id" and
// "target_id". Any other key is compared against the property map.
type Filter map[string]interface{}

// PathElement is one step of a traversal result. Exactly one field is set,
// so a Path alternates node, edge, node.
type PathElement struct {
	Entity       *model.Entity       `json:"entity,omitempty"`
	Relationship *model.Relationship `json:"relationship,omitempty"`
}

type Path []PathElement

type Store interface {
	Name() string

	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	AddEntity(ctx context.Context, e *model.Entity) (string, error)
	GetRelationship(ctx context.Context, id string) (*model.Relationship, error)
	AddRelationship(ctx context.Context, r *model.Relationship) (string, error)

	FindEntities(ctx context.Context, filter Filter, limit int) ([]*model.Entity, error)
	FindRelationships(ctx context.Context, filter Filter, limit int) ([]*model.Relationship, error)
	FindPaths(ctx context.Context, sourceID, targetID string, maxDepth int) ([]Path, error)

	AllEntities(ctx context.Context) ([]*model.Entity, error)
	AllRelationships(ctx context.Context) ([]*model.Relationship, error)

	Clear(ctx context.Context, confirm bool) error
	Close(ctx context.Context) error
}

// ConnectionStore is implemented by backends that can keep discovered
// connections as side records when they do not map cleanly to a
// relationship.
type ConnectionStore interface {
	AddConnection(ctx context.Context, c *model.Connection) (string, error)
}

// VersionStore is implemented by backends that can persist version chains so
// history and point-in-time reconstruction survive a restart.
type VersionStore interface {
	SaveVersions(ctx context.Context, versions []*model.Version) error
	LoadVersions(ctx context.Context) ([]*model.Version, error)
}
