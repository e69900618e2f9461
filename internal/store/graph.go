package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/model"
)

// GraphStore speaks bolt to a property-graph database (Neo4j or Memgraph).
type GraphStore struct {
	driver neo4j.DriverWithContext
	uri    string
	log    *zap.Logger
}

func NewGraphStore(ctx context.Context, uri, username, password string, log *zap.Logger) (*GraphStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graph backend unreachable: %w", err)
	}
	log.Info("connected to graph backend", zap.String("uri", uri))
	return &GraphStore{driver: driver, uri: uri, log: log}, nil
}

func (s *GraphStore) Name() string { return "graph:" + s.uri }

func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *GraphStore) execute(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return result, nil
}

// BuildIndices creates lookup indices; failures are logged and skipped since
// the index may already exist.
func (s *GraphStore) BuildIndices(ctx context.Context) error {
	for _, q := range indexQueries {
		if _, err := s.execute(ctx, q, nil); err != nil {
			s.log.Warn("failed to create index", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

func (s *GraphStore) AddEntity(ctx context.Context, e *model.Entity) (string, error) {
	if len(e.Labels) == 0 {
		return "", fmt.Errorf("entity %s has no labels", e.ID)
	}
	params := map[string]interface{}{
		"id":                e.ID,
		"name":              e.Name,
		"labels":            jsonString(e.Labels),
		"properties":        jsonString(e.Properties),
		"confidence":        model.ClampConfidence(e.Confidence),
		"source":            e.Source,
		"aliases":           jsonString(e.Aliases),
		"created_at":        e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":        e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"conflict_metadata": jsonString(e.ConflictMetadata),
	}
	if _, err := s.execute(ctx, saveEntityQuery, params); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (s *GraphStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	result, err := s.execute(ctx, getEntityQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}
	return entityFromRecord(result.Records[0])
}

func (s *GraphStore) AddRelationship(ctx context.Context, r *model.Relationship) (string, error) {
	params := map[string]interface{}{
		"id":                r.ID,
		"type":              r.Type,
		"source_id":         r.SourceID,
		"target_id":         r.TargetID,
		"properties":        jsonString(r.Properties),
		"confidence":        model.ClampConfidence(r.Confidence),
		"source":            r.Source,
		"bidirectional":     r.Bidirectional,
		"created_at":        r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":        r.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"conflict_metadata": jsonString(r.ConflictMetadata),
	}
	result, err := s.execute(ctx, saveRelationshipQuery, params)
	if err != nil {
		return "", err
	}
	// MERGE matched nothing when an endpoint is missing.
	if len(result.Records) == 0 {
		return "", fmt.Errorf("relationship %s references unknown entities %s -> %s", r.ID, r.SourceID, r.TargetID)
	}
	return r.ID, nil
}

func (s *GraphStore) GetRelationship(ctx context.Context, id string) (*model.Relationship, error) {
	result, err := s.execute(ctx, getRelationshipQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}
	return relationshipFromRecord(result.Records[0])
}

func (s *GraphStore) FindEntities(ctx context.Context, filter Filter, limit int) ([]*model.Entity, error) {
	all, err := s.AllEntities(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Entity
	for _, e := range all {
		if !matchEntity(e, filter) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *GraphStore) FindRelationships(ctx context.Context, filter Filter, limit int) ([]*model.Relationship, error) {
	all, err := s.AllRelationships(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Relationship
	for _, r := range all {
		if !matchRelationship(r, filter) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *GraphStore) FindPaths(ctx context.Context, sourceID, targetID string, maxDepth int) ([]Path, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	// Variable-length bounds cannot be parameterized in Cypher.
	query := fmt.Sprintf(`
		MATCH p = (a:Entity {id: $source_id})-[:RELATES_TO*1..%d]->(b:Entity {id: $target_id})
		RETURN p
		LIMIT 25
	`, maxDepth)
	result, err := s.execute(ctx, query, map[string]interface{}{
		"source_id": sourceID,
		"target_id": targetID,
	})
	if err != nil {
		return nil, err
	}

	var paths []Path
	for _, rec := range result.Records {
		raw, ok := rec.Get("p")
		if !ok {
			continue
		}
		p, ok := raw.(neo4j.Path)
		if !ok {
			continue
		}
		path, err := pathFromBolt(p)
		if err != nil {
			s.log.Warn("skipping undecodable path", zap.Error(err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *GraphStore) AllEntities(ctx context.Context) ([]*model.Entity, error) {
	result, err := s.execute(ctx, allEntitiesQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Entity, 0, len(result.Records))
	for _, rec := range result.Records {
		e, err := entityFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *GraphStore) AllRelationships(ctx context.Context) ([]*model.Relationship, error) {
	result, err := s.execute(ctx, allRelationshipsQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Relationship, 0, len(result.Records))
	for _, rec := range result.Records {
		r, err := relationshipFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *GraphStore) Clear(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}
	_, err := s.execute(ctx, clearQuery, nil)
	return err
}

func entityFromRecord(rec *neo4j.Record) (*model.Entity, error) {
	e := &model.Entity{
		ID:         recString(rec, "id"),
		Name:       recString(rec, "name"),
		Confidence: recFloat(rec, "confidence"),
		Source:     recString(rec, "source"),
		CreatedAt:  recTime(rec, "created_at"),
		UpdatedAt:  recTime(rec, "updated_at"),
	}
	if err := decodeJSONField(rec, "labels", &e.Labels); err != nil {
		return nil, err
	}
	if err := decodeJSONField(rec, "properties", &e.Properties); err != nil {
		return nil, err
	}
	if err := decodeJSONField(rec, "aliases", &e.Aliases); err != nil {
		return nil, err
	}
	if err := decodeJSONField(rec, "conflict_metadata", &e.ConflictMetadata); err != nil {
		return nil, err
	}
	return e, nil
}

func relationshipFromRecord(rec *neo4j.Record) (*model.Relationship, error) {
	r := &model.Relationship{
		ID:            recString(rec, "id"),
		Type:          recString(rec, "type"),
		SourceID:      recString(rec, "source_id"),
		TargetID:      recString(rec, "target_id"),
		Confidence:    recFloat(rec, "confidence"),
		Source:        recString(rec, "source"),
		Bidirectional: recBool(rec, "bidirectional"),
		CreatedAt:     recTime(rec, "created_at"),
		UpdatedAt:     recTime(rec, "updated_at"),
	}
	if err := decodeJSONField(rec, "properties", &r.Properties); err != nil {
		return nil, err
	}
	if err := decodeJSONField(rec, "conflict_metadata", &r.ConflictMetadata); err != nil {
		return nil, err
	}
	return r, nil
}

func pathFromBolt(p neo4j.Path) (Path, error) {
	var out Path
	for i, node := range p.Nodes {
		e, err := entityFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		out = append(out, PathElement{Entity: e})
		if i < len(p.Relationships) {
			rel, err := relationshipFromProps(p.Relationships[i].Props)
			if err != nil {
				return nil, err
			}
			out = append(out, PathElement{Relationship: rel})
		}
	}
	return out, nil
}

func entityFromProps(props map[string]interface{}) (*model.Entity, error) {
	e := &model.Entity{
		ID:   propString(props, "id"),
		Name: propString(props, "name"),
	}
	if c, ok := props["confidence"].(float64); ok {
		e.Confidence = c
	}
	if err := decodeJSONString(propString(props, "labels"), &e.Labels); err != nil {
		return nil, err
	}
	if err := decodeJSONString(propString(props, "properties"), &e.Properties); err != nil {
		return nil, err
	}
	return e, nil
}

func relationshipFromProps(props map[string]interface{}) (*model.Relationship, error) {
	r := &model.Relationship{
		ID:   propString(props, "id"),
		Type: propString(props, "type"),
	}
	if c, ok := props["confidence"].(float64); ok {
		r.Confidence = c
	}
	if err := decodeJSONString(propString(props, "properties"), &r.Properties); err != nil {
		return nil, err
	}
	return r, nil
}

func jsonString(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeJSONField(rec *neo4j.Record, key string, v interface{}) error {
	return decodeJSONString(recString(rec, key), v)
}

func decodeJSONString(raw string, v interface{}) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode stored field: %w", err)
	}
	return nil
}

func recString(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func recFloat(rec *neo4j.Record, key string) float64 {
	if v, ok := rec.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func recBool(rec *neo4j.Record, key string) bool {
	if v, ok := rec.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func recTime(rec *neo4j.Record, key string) time.Time {
	raw := recString(rec, key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func propString(props map[string]interface{}, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}
