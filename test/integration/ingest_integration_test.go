//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/fingerprint"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/driver"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/events"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// Requires a running bolt-compatible graph store. Set GRAPH_URI to enable,
// e.g. GRAPH_URI=bolt://localhost:7687 go test -tags integration ./test/...
func newIntegrationIngestor(t *testing.T) (*core.Ingestor, driver.GraphDriver) {
	_ = godotenv.Load("../../.env")

	uri := os.Getenv("GRAPH_URI")
	if uri == "" {
		t.Skip("Skipping integration test: GRAPH_URI not set")
	}

	lg := logger.NewNop()
	d, err := driver.NewNeo4jDriver(uri, os.Getenv("GRAPH_USER"), os.Getenv("GRAPH_PASSWORD"), os.Getenv("GRAPH_DATABASE"), lg)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close(context.Background()) })
	require.NoError(t, d.BuildIndices(context.Background()))

	cfg := config.Default()
	registry := fingerprint.NewRegistry(fingerprint.NewMemoryStore(), 1, lg)
	return core.NewIngestor(cfg, d, registry, events.NopPublisher{}, lg), d
}

func TestIngestFullFlow(t *testing.T) {
	ing, d := newIntegrationIngestor(t)
	ctx := context.Background()

	// Unique domain per run keeps concept ids from colliding across runs.
	domain := "it-" + uuid.New().String()[:8]
	batch := model.Batch{
		DocumentID: "doc-" + domain,
		BatchID:    "b1-" + domain,
		Domain:     domain,
		Concepts: []model.ConceptCandidate{
			{LocalID: "c1", Name: "Loops", Embedding: unitVec(0), Difficulty: 2, Confidence: 0.8},
			{LocalID: "c2", Name: "Recursion", Embedding: unitVec(1), Difficulty: 4, Confidence: 0.9},
		},
		Relationships: []model.RelationshipCandidate{
			{SourceLocalID: "c2", TargetLocalID: "c1", Type: model.RelRequires, Weight: 0.8, Confidence: 0.9},
		},
	}

	report, err := ing.ProcessBatch(ctx, batch, false)
	require.NoError(t, err)
	assert.Equal(t, model.BatchProcessed, report.Status)
	assert.Equal(t, 2, report.ConceptsAdded)
	assert.Equal(t, 1, report.EdgesWritten)

	// The written nodes are queryable under their minted ids.
	res, err := d.ExecuteQuery(ctx, fmt.Sprintf(
		"MATCH (n:Concept) WHERE n.domain = '%s' RETURN count(n) AS total", domain), nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	total, _ := res.Records[0].Get("total")
	assert.EqualValues(t, 2, driver.AsInt(total))

	// Replaying the identical batch is a no-op.
	replay, err := ing.ProcessBatch(ctx, batch, false)
	require.NoError(t, err)
	assert.Equal(t, model.BatchSkipped, replay.Status)

	// A second batch merging into an existing concept.
	batch2 := model.Batch{
		DocumentID: "doc2-" + domain,
		BatchID:    "b2-" + domain,
		Domain:     domain,
		Concepts: []model.ConceptCandidate{
			{LocalID: "c1", Name: "Recursive Functions", Embedding: unitVec(1), Difficulty: 5, Confidence: 0.6},
		},
	}
	report2, err := ing.ProcessBatch(ctx, batch2, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report2.ConceptsMerged)
	assert.Equal(t, 0, report2.ConceptsAdded)
}

func TestIngestRejectsPrerequisiteCycle(t *testing.T) {
	ing, _ := newIntegrationIngestor(t)
	ctx := context.Background()

	domain := "it-" + uuid.New().String()[:8]
	batch := model.Batch{
		DocumentID: "doc-" + domain,
		BatchID:    "b1-" + domain,
		Domain:     domain,
		Concepts: []model.ConceptCandidate{
			{LocalID: "c1", Name: "Alpha", Embedding: unitVec(2), Difficulty: 1, Confidence: 0.9},
			{LocalID: "c2", Name: "Beta", Embedding: unitVec(3), Difficulty: 2, Confidence: 0.9},
		},
		Relationships: []model.RelationshipCandidate{
			{SourceLocalID: "c1", TargetLocalID: "c2", Type: model.RelRequires, Weight: 1, Confidence: 1},
			{SourceLocalID: "c2", TargetLocalID: "c1", Type: model.RelRequires, Weight: 1, Confidence: 1},
		},
	}

	report, err := ing.ProcessBatch(ctx, batch, false)
	require.NoError(t, err)
	assert.Equal(t, model.BatchPartial, report.Status)
	assert.Len(t, report.RejectedEdges, 1)
}

// unitVec returns a 4-dimensional one-hot vector; distinct axes are
// orthogonal so test concepts never accidentally merge.
func unitVec(axis int) []float32 {
	v := make([]float32, 4)
	v[axis%4] = 1
	return v
}
