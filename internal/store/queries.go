package store

// Nested maps cannot live in graph properties, so the property map, labels,
// aliases and conflict metadata are stored as JSON strings and decoded on
// read. Relationship edges use a fixed RELATES_TO label with the domain type
// kept in the `type` property, since bolt cannot parameterize edge labels.

const (
	saveEntityQuery = `
		MERGE (n:Entity {id: $id})
		SET n.name = $name,
			n.labels = $labels,
			n.properties = $properties,
			n.confidence = $confidence,
			n.source = $source,
			n.aliases = $aliases,
			n.created_at = $created_at,
			n.updated_at = $updated_at,
			n.conflict_metadata = $conflict_metadata
		RETURN n.id AS id
	`

	getEntityQuery = `
		MATCH (n:Entity {id: $id})
		RETURN n.id AS id, n.name AS name, n.labels AS labels,
			n.properties AS properties, n.confidence AS confidence,
			n.source AS source, n.aliases AS aliases,
			n.created_at AS created_at, n.updated_at AS updated_at,
			n.conflict_metadata AS conflict_metadata
	`

	allEntitiesQuery = `
		MATCH (n:Entity)
		RETURN n.id AS id, n.name AS name, n.labels AS labels,
			n.properties AS properties, n.confidence AS confidence,
			n.source AS source, n.aliases AS aliases,
			n.created_at AS created_at, n.updated_at AS updated_at,
			n.conflict_metadata AS conflict_metadata
	`

	saveRelationshipQuery = `
		MATCH (source:Entity {id: $source_id})
		MATCH (target:Entity {id: $target_id})
		MERGE (source)-[e:RELATES_TO {id: $id}]->(target)
		SET e.type = $type,
			e.properties = $properties,
			e.confidence = $confidence,
			e.source = $source,
			e.bidirectional = $bidirectional,
			e.created_at = $created_at,
			e.updated_at = $updated_at,
			e.conflict_metadata = $conflict_metadata
		RETURN e.id AS id
	`

	getRelationshipQuery = `
		MATCH (a:Entity)-[e:RELATES_TO {id: $id}]->(b:Entity)
		RETURN e.id AS id, e.type AS type, a.id AS source_id, b.id AS target_id,
			e.properties AS properties, e.confidence AS confidence,
			e.source AS source, e.bidirectional AS bidirectional,
			e.created_at AS created_at, e.updated_at AS updated_at,
			e.conflict_metadata AS conflict_metadata
	`

	allRelationshipsQuery = `
		MATCH (a:Entity)-[e:RELATES_TO]->(b:Entity)
		RETURN e.id AS id, e.type AS type, a.id AS source_id, b.id AS target_id,
			e.properties AS properties, e.confidence AS confidence,
			e.source AS source, e.bidirectional AS bidirectional,
			e.created_at AS created_at, e.updated_at AS updated_at,
			e.conflict_metadata AS conflict_metadata
	`

	clearQuery = `MATCH (n) DETACH DELETE n`
)

var indexQueries = []string{
	"CREATE INDEX ON :Entity(id);",
	"CREATE INDEX ON :Entity(name);",
}
