package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/model"
)

// FileStore implements the storage contract with one JSON document per
// record under its own directory tree. It owns the directory it was opened
// on and is passed by injection, never held as process-wide state.
type FileStore struct {
	dir string
	mu  sync.RWMutex
	log *zap.Logger
}

const (
	entitiesDir      = "entities"
	relationshipsDir = "relationships"
	connectionsDir   = "connections"
	versionsDir      = "versions"
)

func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, sub := range []string{entitiesDir, relationshipsDir, connectionsDir, versionsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) Name() string { return "file:" + s.dir }

func (s *FileStore) GetEntity(_ context.Context, id string) (*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var e model.Entity
	if err := s.readJSON(entitiesDir, id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *FileStore) AddEntity(_ context.Context, e *model.Entity) (string, error) {
	if len(e.Labels) == 0 {
		return "", fmt.Errorf("entity %s has no labels", e.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := e.Clone()
	stored.Confidence = model.ClampConfidence(stored.Confidence)
	if err := s.writeJSON(entitiesDir, stored.ID, stored); err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *FileStore) GetRelationship(_ context.Context, id string) (*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var r model.Relationship
	if err := s.readJSON(relationshipsDir, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FileStore) AddRelationship(_ context.Context, r *model.Relationship) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := r.Clone()
	stored.Confidence = model.ClampConfidence(stored.Confidence)
	if err := s.writeJSON(relationshipsDir, stored.ID, stored); err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *FileStore) AddConnection(_ context.Context, c *model.Connection) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	if err := s.writeJSON(connectionsDir, id, c); err != nil {
		return "", err
	}
	return id, nil
}

func (s *FileStore) FindEntities(ctx context.Context, filter Filter, limit int) ([]*model.Entity, error) {
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

func (s *FileStore) FindRelationships(ctx context.Context, filter Filter, limit int) ([]*model.Relationship, error) {
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

// FindPaths walks the stored relationships breadth-first from sourceID,
// collecting simple paths of at most maxDepth edges that reach targetID.
func (s *FileStore) FindPaths(ctx context.Context, sourceID, targetID string, maxDepth int) ([]Path, error) {
	entities, err := s.AllEntities(ctx)
	if err != nil {
		return nil, err
	}
	relationships, err := s.AllRelationships(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	outgoing := make(map[string][]*model.Relationship)
	for _, r := range relationships {
		outgoing[r.SourceID] = append(outgoing[r.SourceID], r)
		if r.Bidirectional {
			outgoing[r.TargetID] = append(outgoing[r.TargetID], r)
		}
	}
	if byID[sourceID] == nil || byID[targetID] == nil {
		return nil, nil
	}

	type walk struct {
		at      string
		path    Path
		visited map[string]bool
	}
	start := walk{
		at:      sourceID,
		path:    Path{{Entity: byID[sourceID]}},
		visited: map[string]bool{sourceID: true},
	}

	var paths []Path
	queue := []walk{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path)/2 >= maxDepth {
			continue
		}
		for _, rel := range outgoing[cur.at] {
			next := rel.TargetID
			if rel.Bidirectional && next == cur.at {
				next = rel.SourceID
			}
			if cur.visited[next] {
				continue
			}
			extended := append(append(Path{}, cur.path...),
				PathElement{Relationship: rel}, PathElement{Entity: byID[next]})
			if next == targetID {
				paths = append(paths, extended)
				continue
			}
			visited := make(map[string]bool, len(cur.visited)+1)
			for k := range cur.visited {
				visited[k] = true
			}
			visited[next] = true
			queue = append(queue, walk{at: next, path: extended, visited: visited})
		}
	}
	return paths, nil
}

func (s *FileStore) AllEntities(_ context.Context) ([]*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Entity
	err := s.eachFile(entitiesDir, func(path string) error {
		var e model.Entity
		if err := readFile(path, &e); err != nil {
			return err
		}
		out = append(out, &e)
		return nil
	})
	return out, err
}

func (s *FileStore) AllRelationships(_ context.Context) ([]*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Relationship
	err := s.eachFile(relationshipsDir, func(path string) error {
		var r model.Relationship
		if err := readFile(path, &r); err != nil {
			return err
		}
		out = append(out, &r)
		return nil
	})
	return out, err
}

// SaveVersions writes each version under versions/<version_id>.json. A
// superseded version's file is overwritten with its closed copy.
func (s *FileStore) SaveVersions(_ context.Context, versions []*model.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range versions {
		if err := s.writeJSON(versionsDir, v.VersionID, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) LoadVersions(_ context.Context) ([]*model.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Version
	err := s.eachFile(versionsDir, func(path string) error {
		var v model.Version
		if err := readFile(path, &v); err != nil {
			return err
		}
		out = append(out, &v)
		return nil
	})
	return out, err
}

func (s *FileStore) Clear(_ context.Context, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range []string{entitiesDir, relationshipsDir, connectionsDir, versionsDir} {
		dir := filepath.Join(s.dir, sub)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear %s: %w", sub, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	s.log.Info("knowledge store cleared", zap.String("dir", s.dir))
	return nil
}

func (s *FileStore) Close(context.Context) error { return nil }

func (s *FileStore) eachFile(sub string, fn func(path string) error) error {
	dir := filepath.Join(s.dir, sub)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := fn(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) readJSON(sub, id string, v interface{}) error {
	path := filepath.Join(s.dir, sub, filepath.Base(id)+".json")
	if err := readFile(path, v); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// writeJSON writes atomically via a temp file rename so a crashed write
// never leaves a half-serialized record behind.
func (s *FileStore) writeJSON(sub, id string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}
	path := filepath.Join(s.dir, sub, filepath.Base(id)+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record %s: %w", id, err)
	}
	return os.Rename(tmp, path)
}

func readFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func matchEntity(e *model.Entity, filter Filter) bool {
	for key, want := range filter {
		switch key {
		case "id":
			if e.ID != want {
				return false
			}
		case "name":
			if e.Name != want {
				return false
			}
		case "label", "type":
			label, _ := want.(string)
			if !e.HasLabel(label) {
				return false
			}
		default:
			got, ok := e.Properties[key]
			if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
				return false
			}
		}
	}
	return true
}

func matchRelationship(r *model.Relationship, filter Filter) bool {
	for key, want := range filter {
		switch key {
		case "id":
			if r.ID != want {
				return false
			}
		case "type":
			if r.Type != want {
				return false
			}
		case "source_id":
			if r.SourceID != want {
				return false
			}
		case "target_id":
			if r.TargetID != want {
				return false
			}
		default:
			got, ok := r.Properties[key]
			if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
				return false
			}
		}
	}
	return true
}
