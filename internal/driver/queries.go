package driver

const (
	// Bulk upsert of canonical concepts, keyed by concept_id. Insert-or-merge:
	// re-running a batch never duplicates a node.
	UpsertConceptsQuery = `
		UNWIND $concepts AS c
		MERGE (n:Concept {concept_id: c.concept_id})
		SET n.name = c.name,
			n.description = c.description,
			n.embedding = c.embedding,
			n.tags = c.tags,
			n.difficulty = c.difficulty,
			n.provenance_json = c.provenance_json,
			n.domain = c.domain,
			n.created_at = coalesce(n.created_at, c.created_at),
			n.updated_at = c.updated_at
		RETURN count(n) AS written
	`

	// Bulk upsert of relationships keyed by endpoints + rel_type.
	UpsertRelationshipsQuery = `
		UNWIND $rels AS r
		MATCH (source:Concept {concept_id: r.source_id})
		MATCH (target:Concept {concept_id: r.target_id})
		MERGE (source)-[e:RELATES {rel_type: r.rel_type}]->(target)
		SET e.weight = r.weight,
			e.confidence = r.confidence,
			e.batch_id = r.batch_id,
			e.updated_at = r.updated_at
		RETURN count(e) AS written
	`

	// Staging copies are structurally identical but namespaced by label and
	// tagged with the batch id, so they can be audited and rolled back before
	// promotion.
	StageConceptsQuery = `
		UNWIND $concepts AS c
		MERGE (n:StagedConcept {concept_id: c.concept_id, batch_id: $batch_id})
		SET n.name = c.name,
			n.description = c.description,
			n.embedding = c.embedding,
			n.tags = c.tags,
			n.difficulty = c.difficulty,
			n.provenance_json = c.provenance_json,
			n.domain = c.domain,
			n.created_at = c.created_at,
			n.updated_at = c.updated_at
		RETURN count(n) AS staged
	`

	StageRelationshipsQuery = `
		UNWIND $rels AS r
		MERGE (n:StagedRelationship {
			source_id: r.source_id,
			target_id: r.target_id,
			rel_type: r.rel_type,
			batch_id: $batch_id
		})
		SET n.weight = r.weight,
			n.confidence = r.confidence,
			n.updated_at = r.updated_at
		RETURN count(n) AS staged
	`

	// Removes this batch's staging records after a fully successful
	// promotion. On partial failure the records are left for manual review.
	ClearStagedConceptsQuery = `
		MATCH (n:StagedConcept {batch_id: $batch_id})
		DELETE n
	`

	ClearStagedRelationshipsQuery = `
		MATCH (n:StagedRelationship {batch_id: $batch_id})
		DELETE n
	`

	// Approximate nearest-neighbor lookup over the concept embedding index.
	// Fails on servers without vector index support; the retriever falls back
	// to a linear scan.
	VectorSearchQuery = `
		CALL db.index.vector.queryNodes('concept_embedding_index', $k, $embedding)
		YIELD node, score
		RETURN node.concept_id AS concept_id,
			node.name AS name,
			node.description AS description,
			node.embedding AS embedding,
			node.tags AS tags,
			node.difficulty AS difficulty,
			node.domain AS domain,
			node.provenance_json AS provenance_json,
			score AS score
	`

	// Full scan used by the degraded retrieval path and by small deployments
	// without a vector index.
	AllConceptsQuery = `
		MATCH (n:Concept)
		RETURN n.concept_id AS concept_id,
			n.name AS name,
			n.description AS description,
			n.embedding AS embedding,
			n.tags AS tags,
			n.difficulty AS difficulty,
			n.domain AS domain,
			n.provenance_json AS provenance_json
	`

	// Lightweight id/name listing for the fuzzy lexical widening pass.
	ConceptNamesQuery = `
		MATCH (n:Concept)
		RETURN n.concept_id AS concept_id, n.name AS name
	`

	ConceptsByIDsQuery = `
		MATCH (n:Concept)
		WHERE n.concept_id IN $ids
		RETURN n.concept_id AS concept_id,
			n.name AS name,
			n.description AS description,
			n.embedding AS embedding,
			n.tags AS tags,
			n.difficulty AS difficulty,
			n.domain AS domain,
			n.provenance_json AS provenance_json
	`

	// All ordering-class edges plus endpoint names; loaded once per batch to
	// drive both structural scoring and cycle detection.
	OrderingEdgesQuery = `
		MATCH (a:Concept)-[e:RELATES]->(b:Concept)
		WHERE e.rel_type IN $types
		RETURN a.concept_id AS source_id, b.concept_id AS target_id,
			a.name AS source_name, b.name AS target_name
	`

	GraphCountsQuery = `
		MATCH (n:Concept)
		OPTIONAL MATCH ()-[e:RELATES]->()
		RETURN count(DISTINCT n) AS concepts, count(DISTINCT e) AS relationships
	`

	PingQuery = `RETURN 1 AS ok`
)
