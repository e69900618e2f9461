// Package core orchestrates knowledge integration: conversion, conflict
// detection and resolution, versioned persistence and connection discovery,
// batch by batch.
package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/convert"
	"github.com/weavelabs/weave/internal/core/discover"
	"github.com/weavelabs/weave/internal/core/model"
	"github.com/weavelabs/weave/internal/core/resolve"
	"github.com/weavelabs/weave/internal/core/temporal"
	"github.com/weavelabs/weave/internal/store"
)

type Engine struct {
	Store     store.Store
	Converter *convert.Converter
	Resolver  *resolve.Resolver
	Discovery *discover.Engine
	Tracker   *temporal.Tracker
	Gaps      GapAnalyzer

	log *zap.Logger
}

func NewEngine(st store.Store, resolver *resolve.Resolver, discovery *discover.Engine, tracker *temporal.Tracker, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Store:     st,
		Converter: convert.NewConverter(log),
		Resolver:  resolver,
		Discovery: discovery,
		Tracker:   tracker,
		Gaps:      noopGapAnalyzer{},
		log:       log,
	}
}

// Integrate runs one ingestion batch through the full pipeline. It always
// returns a structured result; per-record failures never abort the batch.
func (e *Engine) Integrate(ctx context.Context, rawEntities []model.ExtractedEntity, rawRelationships []model.ExtractedRelationship) *Result {
	res := &Result{}

	entities, skippedEntities := e.Converter.Entities(rawEntities)
	for _, s := range skippedEntities {
		res.FailedEntities = append(res.FailedEntities, Failure{ID: s.ID, Reason: "conversion: " + s.Reason})
	}
	relationships, skippedRelationships := e.Converter.Relationships(rawRelationships)
	for _, s := range skippedRelationships {
		res.FailedRelationships = append(res.FailedRelationships, Failure{ID: s.ID, Reason: "conversion: " + s.Reason})
	}

	known := make(map[string]bool)
	aliases := make(map[string]string)
	for _, candidate := range entities {
		e.integrateEntity(ctx, candidate, known, aliases, res)
	}
	for _, candidate := range relationships {
		e.integrateRelationship(ctx, candidate, known, aliases, res)
	}

	e.discoverAndPersist(ctx, res)

	return res
}

func (e *Engine) integrateEntity(ctx context.Context, candidate *model.Entity, known map[string]bool, aliases map[string]string, res *Result) {
	existing := e.lookupEntity(ctx, candidate)

	resolved := candidate
	change := model.ChangeCreate
	if existing != nil {
		conflicts := e.detectEntityConflicts(candidate, existing)
		res.EntityConflicts = append(res.EntityConflicts, conflicts...)
		resolved = e.Resolver.ResolveEntity(conflicts, candidate, existing)
		change = model.ChangeUpdate
	}

	if err := e.persistEntity(ctx, resolved, change); err != nil {
		res.FailedEntities = append(res.FailedEntities, Failure{ID: resolved.ID, Record: resolved, Reason: err.Error()})
		return
	}
	res.IntegratedEntities++
	known[resolved.ID] = true
	// A candidate that resolved onto a stored identity keeps arriving in the
	// batch's relationships under its extractor id; those endpoints must be
	// rewritten to the surviving id, never stored as-is.
	if candidate.ID != resolved.ID {
		aliases[candidate.ID] = resolved.ID
	}
}

func (e *Engine) integrateRelationship(ctx context.Context, candidate *model.Relationship, known map[string]bool, aliases map[string]string, res *Result) {
	if id, ok := aliases[candidate.SourceID]; ok {
		candidate.SourceID = id
	}
	if id, ok := aliases[candidate.TargetID]; ok {
		candidate.TargetID = id
	}

	// Both endpoints must resolve to known entities before persistence.
	for _, endpoint := range []string{candidate.SourceID, candidate.TargetID} {
		if !e.entityKnown(ctx, known, endpoint) {
			res.FailedRelationships = append(res.FailedRelationships,
				Failure{ID: candidate.ID, Record: candidate, Reason: "references unknown entity " + endpoint})
			return
		}
	}

	existingSet := e.relationshipsTouching(ctx, candidate)
	conflicts := e.detectRelationshipConflicts(candidate, existingSet)
	res.RelationshipConflicts = append(res.RelationshipConflicts, conflicts...)

	for _, c := range conflicts {
		if c.Type != model.ConflictContradictoryRelationships {
			continue
		}
		contradicted := findRelationship(existingSet, c.ExistingID)
		if contradicted == nil {
			continue
		}
		// Keep both sides, each annotated with the other's identity. The
		// sides persist independently: a failure on one is reported without
		// dropping the other.
		kept := e.Resolver.HandleContradictoryRelationships(c, candidate, contradicted)
		for i, rel := range kept {
			change := model.ChangeUpdate
			if i > 0 { // the candidate is new to the store
				change = model.ChangeCreate
			}
			if err := e.persistRelationship(ctx, rel, change); err != nil {
				res.FailedRelationships = append(res.FailedRelationships, Failure{ID: rel.ID, Record: rel, Reason: err.Error()})
				continue
			}
			if rel.ID == candidate.ID {
				res.IntegratedRelationships++
			}
		}
		return
	}

	resolved := candidate
	change := model.ChangeCreate
	if direct := directRelationship(existingSet, candidate); direct != nil {
		resolved = e.Resolver.ResolveRelationship(conflicts, candidate, direct)
		change = model.ChangeUpdate
	}

	if err := e.persistRelationship(ctx, resolved, change); err != nil {
		res.FailedRelationships = append(res.FailedRelationships, Failure{ID: resolved.ID, Record: resolved, Reason: err.Error()})
		return
	}
	res.IntegratedRelationships++
}

// discoverAndPersist runs connection discovery over the stored snapshot and
// materializes new connections as low-confidence relationships.
func (e *Engine) discoverAndPersist(ctx context.Context, res *Result) {
	entities, err := e.Store.AllEntities(ctx)
	if err != nil {
		e.log.Error("skipping connection discovery, snapshot unavailable", zap.Error(err))
		res.FailedConnections = append(res.FailedConnections, Failure{Reason: "discovery skipped: " + err.Error()})
		return
	}
	relationships, err := e.Store.AllRelationships(ctx)
	if err != nil {
		e.log.Error("skipping connection discovery, snapshot unavailable", zap.Error(err))
		res.FailedConnections = append(res.FailedConnections, Failure{Reason: "discovery skipped: " + err.Error()})
		return
	}

	connections := e.Discovery.Discover(entities, relationships)
	res.Connections = connections
	res.DiscoveredConnections = len(connections)

	for _, conn := range connections {
		if e.derivedExists(relationships, conn) {
			continue
		}
		rel := materializeConnection(conn)
		if err := e.persistRelationship(ctx, rel, model.ChangeCreate); err != nil {
			// Side record when the connection cannot live as a relationship.
			if cs, ok := e.Store.(store.ConnectionStore); ok {
				if _, serr := cs.AddConnection(ctx, &conn); serr == nil {
					continue
				}
			}
			res.FailedConnections = append(res.FailedConnections, Failure{Record: conn, Reason: err.Error()})
		}
	}
}

func materializeConnection(conn model.Connection) *model.Relationship {
	props := map[string]interface{}{
		"derived":     true,
		"description": conn.Description,
	}
	if conn.Via != "" {
		props["intermediate_id"] = conn.Via
	}
	return &model.Relationship{
		ID:         uuid.New().String(),
		Type:       conn.Type.RelationshipType(),
		SourceID:   conn.EntityA,
		TargetID:   conn.EntityB,
		Properties: props,
		Confidence: conn.Confidence,
		Source:     "connection_discovery",
	}
}

// derivedExists reports whether this connection was already materialized in
// an earlier batch. Discovery itself never deduplicates; that is this
// coordinator's job.
func (e *Engine) derivedExists(relationships []*model.Relationship, conn model.Connection) bool {
	relType := conn.Type.RelationshipType()
	for _, rel := range relationships {
		if rel.Type != relType {
			continue
		}
		if (rel.SourceID == conn.EntityA && rel.TargetID == conn.EntityB) ||
			(rel.SourceID == conn.EntityB && rel.TargetID == conn.EntityA) {
			return true
		}
	}
	return false
}

func (e *Engine) persistEntity(ctx context.Context, ent *model.Entity, change model.ChangeType) error {
	prev := e.Tracker.Current(ent.ID)
	if _, err := e.Store.AddEntity(ctx, ent); err != nil {
		return err
	}
	if _, err := e.Tracker.TrackEntityChange(ent, prev, ent.Source, change); err != nil {
		e.log.Warn("persisted entity but failed to record version",
			zap.String("entity_id", ent.ID), zap.Error(err))
		return nil
	}
	e.saveVersions(ctx, ent.ID)
	return nil
}

func (e *Engine) persistRelationship(ctx context.Context, rel *model.Relationship, change model.ChangeType) error {
	prev := e.Tracker.Current(rel.ID)
	if _, err := e.Store.AddRelationship(ctx, rel); err != nil {
		return err
	}
	if _, err := e.Tracker.TrackRelationshipChange(rel, prev, rel.Source, change); err != nil {
		e.log.Warn("persisted relationship but failed to record version",
			zap.String("relationship_id", rel.ID), zap.Error(err))
		return nil
	}
	e.saveVersions(ctx, rel.ID)
	return nil
}

// saveVersions persists the identity's whole chain when the backend supports
// it. The chain includes the just-closed predecessor, whose stored copy must
// pick up its valid_to and successor link.
func (e *Engine) saveVersions(ctx context.Context, logicalID string) {
	vs, ok := e.Store.(store.VersionStore)
	if !ok {
		return
	}
	if err := vs.SaveVersions(ctx, e.Tracker.History(logicalID)); err != nil {
		e.log.Warn("failed to persist version chain",
			zap.String("logical_id", logicalID), zap.Error(err))
	}
}

// lookupEntity finds the stored record for the candidate's logical identity,
// first by id, then by canonical name. Lookup errors are logged and treated
// as not-found so an analysis bug cannot block ingestion.
func (e *Engine) lookupEntity(ctx context.Context, candidate *model.Entity) *model.Entity {
	existing, err := e.Store.GetEntity(ctx, candidate.ID)
	if err == nil {
		return existing
	}
	if !errors.Is(err, store.ErrNotFound) {
		e.log.Warn("entity lookup failed, treating as new",
			zap.String("entity_id", candidate.ID), zap.Error(err))
		return nil
	}
	byName, err := e.Store.FindEntities(ctx, store.Filter{"name": candidate.Name}, 1)
	if err != nil {
		e.log.Warn("entity lookup by name failed, treating as new",
			zap.String("name", candidate.Name), zap.Error(err))
		return nil
	}
	if len(byName) > 0 {
		return byName[0]
	}
	return nil
}

func (e *Engine) entityKnown(ctx context.Context, known map[string]bool, id string) bool {
	if known[id] {
		return true
	}
	if _, err := e.Store.GetEntity(ctx, id); err == nil {
		known[id] = true
		return true
	}
	return false
}

// relationshipsTouching returns stored relationships sharing the candidate's
// endpoints in either direction.
func (e *Engine) relationshipsTouching(ctx context.Context, candidate *model.Relationship) []*model.Relationship {
	var out []*model.Relationship
	forward, err := e.Store.FindRelationships(ctx,
		store.Filter{"source_id": candidate.SourceID, "target_id": candidate.TargetID}, 0)
	if err != nil {
		e.log.Warn("relationship lookup failed", zap.Error(err))
	} else {
		out = append(out, forward...)
	}
	reversed, err := e.Store.FindRelationships(ctx,
		store.Filter{"source_id": candidate.TargetID, "target_id": candidate.SourceID}, 0)
	if err != nil {
		e.log.Warn("reversed relationship lookup failed", zap.Error(err))
	} else {
		out = append(out, reversed...)
	}
	return out
}

// detectEntityConflicts applies fail-open error handling around detection: a
// detection failure must not block ingestion, but it is logged distinctly
// from a genuine no-conflict outcome.
func (e *Engine) detectEntityConflicts(candidate, existing *model.Entity) (conflicts []model.Conflict) {
	defer func() {
		if r := recover(); r != nil {
			conflicts = nil
			e.log.Error("entity conflict detection failed, proceeding as no conflict",
				zap.String("entity_id", candidate.ID), zap.Any("panic", r))
		}
	}()
	return e.Resolver.DetectEntityConflicts(candidate, existing)
}

func (e *Engine) detectRelationshipConflicts(candidate *model.Relationship, existingSet []*model.Relationship) (conflicts []model.Conflict) {
	defer func() {
		if r := recover(); r != nil {
			conflicts = nil
			e.log.Error("relationship conflict detection failed, proceeding as no conflict",
				zap.String("relationship_id", candidate.ID), zap.Any("panic", r))
		}
	}()
	return e.Resolver.DetectRelationshipConflicts(candidate, existingSet)
}

func findRelationship(set []*model.Relationship, id string) *model.Relationship {
	for _, rel := range set {
		if rel.ID == id {
			return rel
		}
	}
	return nil
}

func directRelationship(set []*model.Relationship, candidate *model.Relationship) *model.Relationship {
	for _, rel := range set {
		if rel.SourceID == candidate.SourceID && rel.TargetID == candidate.TargetID {
			return rel
		}
	}
	return nil
}
