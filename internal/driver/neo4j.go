package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// Neo4jDriver talks to Neo4j or Memgraph over bolt.
type Neo4jDriver struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

func NewNeo4jDriver(uri, username, password, database string, log *logger.Logger) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	log.Info("connected to graph store", "uri", uri)
	return &Neo4jDriver{Driver: driver, Database: database, log: log}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(d.Database))
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// BuildIndices creates the constraints and indices the ingestion core
// depends on. Best-effort: servers without vector index support still run,
// with retrieval degraded to linear scans.
func (d *Neo4jDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (n:Concept) REQUIRE n.concept_id IS UNIQUE",
		"CREATE INDEX concept_name_idx IF NOT EXISTS FOR (n:Concept) ON (n.name)",
		"CREATE INDEX concept_domain_idx IF NOT EXISTS FOR (n:Concept) ON (n.domain)",
		"CREATE INDEX staged_concept_batch_idx IF NOT EXISTS FOR (n:StagedConcept) ON (n.batch_id)",
		"CREATE INDEX staged_rel_batch_idx IF NOT EXISTS FOR (n:StagedRelationship) ON (n.batch_id)",
		`CREATE VECTOR INDEX concept_embedding_index IF NOT EXISTS
			FOR (n:Concept) ON (n.embedding)
			OPTIONS {indexConfig: {` + "`vector.similarity_function`" + `: 'cosine'}}`,
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Index may already exist or the server may not support it.
			d.log.Warn("index creation failed (continuing)", "error", err)
		}
	}
	return nil
}
