package fingerprint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

func testBatch() model.Batch {
	return model.Batch{
		DocumentID: "doc-1",
		BatchID:    "b1",
		Domain:     "cs",
		Concepts: []model.ConceptCandidate{
			{LocalID: "c1", Name: "Recursion", Embedding: []float32{1, 0}},
			{LocalID: "c2", Name: "Loops", Embedding: []float32{0, 1}},
		},
		Relationships: []model.RelationshipCandidate{
			{SourceLocalID: "c2", TargetLocalID: "c1", Type: model.RelRequires},
		},
	}
}

func TestChecksum_OrderInvariant(t *testing.T) {
	a := testBatch()
	b := testBatch()
	b.Concepts[0], b.Concepts[1] = b.Concepts[1], b.Concepts[0]
	assert.Equal(t, Checksum(a), Checksum(b))
}

func TestChecksum_ContentSensitive(t *testing.T) {
	a := testBatch()
	b := testBatch()
	b.Concepts[0].Name = "Tail Recursion"
	assert.NotEqual(t, Checksum(a), Checksum(b))

	// BatchID is transport metadata; the same content resubmitted under a
	// new batch id is still a replay.
	c := testBatch()
	c.BatchID = "b2"
	assert.Equal(t, Checksum(a), Checksum(c))
}

func TestRegister_NewThenSkipped(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore(), 30, logger.NewNop())
	checksum := Checksum(testBatch())

	outcome, err := r.Register(ctx, checksum, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, outcome)

	// Still NEW: processing never finished, so a retry is not a replay.
	outcome, err = r.Register(ctx, checksum, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, outcome)

	require.NoError(t, r.MarkProcessed(ctx, checksum))
	outcome, err = r.Register(ctx, checksum, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestRegister_PartialAlsoSkips(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore(), 30, logger.NewNop())
	checksum := Checksum(testBatch())

	_, err := r.Register(ctx, checksum, false)
	require.NoError(t, err)
	require.NoError(t, r.MarkPartial(ctx, checksum))

	outcome, err := r.Register(ctx, checksum, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestRegister_ForceReprocesses(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewRegistry(store, 30, logger.NewNop())
	checksum := Checksum(testBatch())

	_, err := r.Register(ctx, checksum, false)
	require.NoError(t, err)
	require.NoError(t, r.MarkProcessed(ctx, checksum))

	outcome, err := r.Register(ctx, checksum, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, outcome)

	// Force resets the stored status to NEW.
	fp, err := store.Get(ctx, checksum)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, fp.Status)
}
