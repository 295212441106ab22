package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
)

func testFuser() *Fuser {
	f := NewFuser(testResolutionConfig())
	f.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFuse_AppendsProvenance(t *testing.T) {
	f := testFuser()
	existing := model.CanonicalConcept{
		ConceptID:  "cs.recursion",
		Name:       "Recursion",
		Difficulty: 3,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Provenance: []model.ProvenanceEntry{
			{Field: "difficulty", Value: 3.0, Confidence: 0.9, SourceBatchID: "b1"},
			{Field: "name", Value: "Recursion", Confidence: 0.9, SourceBatchID: "b1"},
		},
	}
	cand := model.ConceptCandidate{
		LocalID:       "c1",
		Name:          "Recursive Functions",
		Difficulty:    4,
		Confidence:    0.6,
		SourceBatchID: "b2",
	}

	fused := f.Fuse(existing, cand)

	// One new entry per contributed field, none removed.
	assert.Len(t, fused.ScalarProvenance("difficulty"), 2)
	assert.Len(t, fused.ScalarProvenance("name"), 2)
	assert.Len(t, existing.Provenance, 2, "input must not be mutated")

	// Weighted average over all difficulty entries: (3*0.9 + 4*0.6) / 1.5.
	assert.InDelta(t, 3.4, fused.Difficulty, 1e-9)

	// Name keeps the higher-confidence value.
	assert.Equal(t, "Recursion", fused.Name)
}

func TestFuse_LowerConfidenceNeverOverwrites(t *testing.T) {
	f := testFuser()
	existing := model.CanonicalConcept{
		ConceptID: "cs.recursion",
		Name:      "Recursion",
		Provenance: []model.ProvenanceEntry{
			{Field: "name", Value: "Recursion", Confidence: 0.95},
		},
	}
	cand := model.ConceptCandidate{Name: "Rekursion", Confidence: 0.3}

	fused := f.Fuse(existing, cand)
	assert.Equal(t, "Recursion", fused.Name)

	// A stronger candidate does win.
	cand.Confidence = 0.99
	fused = f.Fuse(existing, cand)
	assert.Equal(t, "Rekursion", fused.Name)
}

func TestFuse_SeedsLegacyProvenance(t *testing.T) {
	f := testFuser()
	// A concept written before provenance tracking has none; its current
	// values join the history at full existing-value confidence.
	existing := model.CanonicalConcept{
		ConceptID:  "cs.loops",
		Name:       "Loops",
		Difficulty: 2,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	cand := model.ConceptCandidate{Name: "Iteration", Difficulty: 4, Confidence: 0.5, SourceBatchID: "b9"}

	fused := f.Fuse(existing, cand)

	// (2*1.0 + 4*0.5) / 1.5
	assert.InDelta(t, 8.0/3.0, fused.Difficulty, 1e-9)
	assert.Equal(t, "Loops", fused.Name)
	assert.NotEmpty(t, fused.ScalarProvenance("difficulty"))
}

func TestFuse_TagsUnion(t *testing.T) {
	f := testFuser()
	existing := model.CanonicalConcept{ConceptID: "cs.x", Name: "X", Tags: []string{"cs", "basics"}}
	cand := model.ConceptCandidate{Name: "X", Tags: []string{"Basics", "theory"}, Confidence: 0.5}

	fused := f.Fuse(existing, cand)
	assert.Equal(t, []string{"basics", "cs", "theory"}, fused.Tags)
}

func TestFuse_ReplayConverges(t *testing.T) {
	f := testFuser()
	existing := model.CanonicalConcept{
		ConceptID:  "cs.x",
		Name:       "X",
		Difficulty: 2,
		Provenance: []model.ProvenanceEntry{
			{Field: "difficulty", Value: 2.0, Confidence: 1.0},
			{Field: "name", Value: "X", Confidence: 1.0},
		},
	}
	cand := model.ConceptCandidate{Name: "X", Difficulty: 4, Confidence: 0.5}

	once := f.Fuse(existing, cand)
	twice := f.Fuse(existing, cand)
	assert.Equal(t, once.Difficulty, twice.Difficulty)
	assert.Equal(t, once.Name, twice.Name)
}

func TestFuse_EmbeddingBlend(t *testing.T) {
	f := testFuser()
	existing := model.CanonicalConcept{ConceptID: "cs.x", Name: "X", Embedding: []float32{1, 0}}
	cand := model.ConceptCandidate{Name: "X", Embedding: []float32{0, 1}, Confidence: 1.0}

	fused := f.Fuse(existing, cand)
	assert.Len(t, fused.Embedding, 2)
	// Equal-confidence blend of orthogonal unit vectors, renormalized.
	assert.InDelta(t, 0.7071, float64(fused.Embedding[0]), 1e-3)
	assert.InDelta(t, 0.7071, float64(fused.Embedding[1]), 1e-3)

	// Dimension mismatch keeps the existing vector.
	bad := model.ConceptCandidate{Name: "X", Embedding: []float32{1, 2, 3}, Confidence: 1.0}
	fused = f.Fuse(existing, bad)
	assert.Equal(t, []float32{1, 0}, fused.Embedding)
}

func TestNewCanonical(t *testing.T) {
	f := testFuser()
	cand := model.ConceptCandidate{
		LocalID:       "c1",
		Name:          "Recursion",
		Description:   "Self-referential computation",
		Embedding:     []float32{1, 0},
		Tags:          []string{"CS"},
		Difficulty:    3,
		Confidence:    0.8,
		SourceBatchID: "b1",
	}

	c := f.NewCanonical("cs.recursion", "cs", cand)
	assert.Equal(t, "cs.recursion", c.ConceptID)
	assert.Equal(t, "cs", c.Domain)
	assert.Equal(t, []string{"cs"}, c.Tags)
	assert.Len(t, c.ScalarProvenance("difficulty"), 1)
	assert.Len(t, c.ScalarProvenance("name"), 1)
	assert.Len(t, c.ScalarProvenance("description"), 1)
	assert.Equal(t, 0.8, c.ScalarProvenance("name")[0].Confidence)
}

func TestStrategyFor(t *testing.T) {
	s, ok := StrategyFor("difficulty")
	assert.True(t, ok)
	assert.Equal(t, WeightedAverage, s)

	s, ok = StrategyFor("tags")
	assert.True(t, ok)
	assert.Equal(t, SetUnion, s)

	_, ok = StrategyFor("embedding")
	assert.False(t, ok)
}
