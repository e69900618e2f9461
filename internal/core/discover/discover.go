// Package discover infers non-explicit connections from a graph snapshot.
// It is read-only over its input and deterministic: the same snapshot and
// configuration always yield the same connection set.
package discover

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/core/model"
)

// Confidences are the per-method connection confidences. They are tunable
// defaults, not load-bearing constants.
type Confidences struct {
	CommonIntermediary  float64
	SimilarRelationship float64
	SharedProperty      float64
	TransitiveRelation  float64
}

type Config struct {
	// MaxConnections caps the result; on truncation the highest-confidence
	// connections survive.
	MaxConnections int

	// TransitiveTypes lists relationship types the transitive pass chains.
	TransitiveTypes []string

	Confidences Confidences
}

func DefaultConfig() Config {
	return Config{
		MaxConnections:  100,
		TransitiveTypes: []string{"BUILDS_ON", "IS_A", "PART_OF", "USES", "BASED_ON", "EXTENDS"},
		Confidences: Confidences{
			CommonIntermediary:  0.7,
			SimilarRelationship: 0.65,
			SharedProperty:      0.6,
			TransitiveRelation:  0.55,
		},
	}
}

// Property keys that carry identity or bookkeeping, not domain attributes.
var systemProperties = map[string]bool{
	"id":         true,
	"name":       true,
	"confidence": true,
	"source":     true,
}

type Engine struct {
	cfg        Config
	transitive map[string]bool
	log        *zap.Logger
}

func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	transitive := make(map[string]bool, len(cfg.TransitiveTypes))
	for _, t := range cfg.TransitiveTypes {
		transitive[t] = true
	}
	return &Engine{cfg: cfg, transitive: transitive, log: log}
}

// Discover runs all four inference passes over the snapshot, concatenates
// their results and applies the cap.
func (e *Engine) Discover(entities []*model.Entity, relationships []*model.Relationship) []model.Connection {
	g := buildSnapshot(entities, relationships)

	var connections []model.Connection
	connections = append(connections, e.commonIntermediaries(g)...)
	connections = append(connections, e.similarRelationships(g)...)
	connections = append(connections, e.sharedProperties(g)...)
	connections = append(connections, e.transitiveRelations(g)...)

	if len(connections) > e.cfg.MaxConnections {
		sort.SliceStable(connections, func(i, j int) bool {
			return connections[i].Confidence > connections[j].Confidence
		})
		connections = connections[:e.cfg.MaxConnections]
	}
	return connections
}

// snapshot is the adjacency view of one discovery pass. Edges are directed;
// bidirectional relationships contribute both directions.
type snapshot struct {
	entities  map[string]*model.Entity
	ids       []string // sorted, for deterministic iteration
	out       map[string]map[string]bool
	connected map[[2]string]bool // unordered direct connectivity
	rels      []*model.Relationship
}

func buildSnapshot(entities []*model.Entity, relationships []*model.Relationship) *snapshot {
	g := &snapshot{
		entities:  make(map[string]*model.Entity, len(entities)),
		out:       make(map[string]map[string]bool),
		connected: make(map[[2]string]bool),
		rels:      relationships,
	}
	for _, ent := range entities {
		g.entities[ent.ID] = ent
		g.ids = append(g.ids, ent.ID)
	}
	sort.Strings(g.ids)

	addEdge := func(from, to string) {
		if g.out[from] == nil {
			g.out[from] = make(map[string]bool)
		}
		g.out[from][to] = true
	}
	for _, rel := range relationships {
		addEdge(rel.SourceID, rel.TargetID)
		if rel.Bidirectional {
			addEdge(rel.TargetID, rel.SourceID)
		}
		g.connected[pairKey(rel.SourceID, rel.TargetID)] = true
	}
	return g
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// commonIntermediaries finds unconnected entity pairs with a shared neighbor.
func (e *Engine) commonIntermediaries(g *snapshot) []model.Connection {
	var out []model.Connection
	for i := 0; i < len(g.ids); i++ {
		for j := i + 1; j < len(g.ids); j++ {
			a, b := g.ids[i], g.ids[j]
			if g.connected[pairKey(a, b)] {
				continue
			}
			for _, via := range sortedKeys(g.out[a]) {
				if !g.out[b][via] {
					continue
				}
				out = append(out, model.Connection{
					Type:       model.ConnectionCommonIntermediary,
					EntityA:    a,
					EntityB:    b,
					Via:        via,
					Confidence: e.cfg.Confidences.CommonIntermediary,
					Description: fmt.Sprintf("%s and %s are both connected to %s",
						g.name(a), g.name(b), g.name(via)),
				})
			}
		}
	}
	return out
}

// similarRelationships pairs distinct sources sharing a (type, target).
func (e *Engine) similarRelationships(g *snapshot) []model.Connection {
	groups := make(map[string][]string)
	for _, rel := range g.rels {
		key := rel.Type + "\x00" + rel.TargetID
		groups[key] = append(groups[key], rel.SourceID)
	}

	var out []model.Connection
	for _, key := range sortedMapKeys(groups) {
		sources := dedupeSorted(groups[key])
		relType, target := splitKey(key)
		for i := 0; i < len(sources); i++ {
			for j := i + 1; j < len(sources); j++ {
				out = append(out, model.Connection{
					Type:       model.ConnectionSimilarRelationship,
					EntityA:    sources[i],
					EntityB:    sources[j],
					Via:        target,
					Confidence: e.cfg.Confidences.SimilarRelationship,
					Description: fmt.Sprintf("%s and %s both have %s toward %s",
						g.name(sources[i]), g.name(sources[j]), relType, g.name(target)),
				})
			}
		}
	}
	return out
}

// sharedProperties pairs differently-typed entities sharing a scalar
// property value. Same-typed entities sharing an attribute are expected, not
// informative, so they are excluded.
func (e *Engine) sharedProperties(g *snapshot) []model.Connection {
	groups := make(map[string][]string)
	for _, id := range g.ids {
		ent := g.entities[id]
		for _, prop := range sortedMapKeysAny(ent.Properties) {
			if systemProperties[prop] {
				continue
			}
			val, ok := scalarString(ent.Properties[prop])
			if !ok {
				continue
			}
			key := prop + "\x00" + val
			groups[key] = append(groups[key], id)
		}
	}

	var out []model.Connection
	for _, key := range sortedMapKeys(groups) {
		members := groups[key]
		prop, val := splitKey(key)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := g.entities[members[i]], g.entities[members[j]]
				if sameLabels(a.Labels, b.Labels) {
					continue
				}
				out = append(out, model.Connection{
					Type:       model.ConnectionSharedProperty,
					EntityA:    a.ID,
					EntityB:    b.ID,
					Confidence: e.cfg.Confidences.SharedProperty,
					Description: fmt.Sprintf("%s and %s share %s=%s",
						a.Name, b.Name, prop, val),
				})
			}
		}
	}
	return out
}

// transitiveRelations chains A-t->B-t->C for configured transitive types when
// no direct A-t->C exists. Doubly inferred, so it carries the lowest
// confidence.
func (e *Engine) transitiveRelations(g *snapshot) []model.Connection {
	type edge struct{ src, dst string }
	byType := make(map[string][]edge)
	direct := make(map[string]map[edge]bool)
	for _, rel := range g.rels {
		if !e.transitive[rel.Type] {
			continue
		}
		ed := edge{rel.SourceID, rel.TargetID}
		byType[rel.Type] = append(byType[rel.Type], ed)
		if direct[rel.Type] == nil {
			direct[rel.Type] = make(map[edge]bool)
		}
		direct[rel.Type][ed] = true
	}

	relTypes := make([]string, 0, len(byType))
	for t := range byType {
		relTypes = append(relTypes, t)
	}
	sort.Strings(relTypes)

	var out []model.Connection
	for _, relType := range relTypes {
		edges := byType[relType]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].src != edges[j].src {
				return edges[i].src < edges[j].src
			}
			return edges[i].dst < edges[j].dst
		})
		for _, first := range edges {
			for _, second := range edges {
				if second.src != first.dst || second.dst == first.src {
					continue
				}
				if direct[relType][edge{first.src, second.dst}] {
					continue
				}
				out = append(out, model.Connection{
					Type:       model.ConnectionTransitiveRelation,
					EntityA:    first.src,
					EntityB:    second.dst,
					Via:        first.dst,
					Confidence: e.cfg.Confidences.TransitiveRelation,
					Description: fmt.Sprintf("%s %s %s through %s",
						g.name(first.src), relType, g.name(second.dst), g.name(first.dst)),
				})
			}
		}
	}
	return out
}

func (g *snapshot) name(id string) string {
	if ent, ok := g.entities[id]; ok && ent.Name != "" {
		return ent.Name
	}
	return id
}

func scalarString(v interface{}) (string, bool) {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, l := range a {
		set[l] = true
	}
	for _, l := range b {
		if !set[l] {
			return false
		}
	}
	return true
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedMapKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedMapKeysAny(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
