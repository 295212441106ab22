// Package score implements stage 2 of candidate resolution: the weighted
// multi-factor similarity between a candidate and a canonical concept.
package score

import (
	"math"
	"strings"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
)

// Entity is the scoring view of a concept, candidate or canonical.
// Neighbors holds normalized names of outgoing ordering-relationship
// targets, so batch-local and graph-resident concepts compare in the same
// space.
type Entity struct {
	Embedding []float32
	Tags      []string
	Neighbors []string
}

// Scorer combines semantic, structural and contextual sub-scores linearly.
// Weights come from config; they are the primary tuning knob and are never
// hard-coded at call sites.
type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the combined similarity in [0,1].
func (s *Scorer) Score(a, b Entity) float64 {
	semantic := Cosine(a.Embedding, b.Embedding)
	structural := Jaccard(a.Neighbors, b.Neighbors)
	contextual := Jaccard(a.Tags, b.Tags)

	combined := s.cfg.SemanticWeight*semantic +
		s.cfg.StructuralWeight*structural +
		s.cfg.ContextualWeight*contextual
	return clamp01(combined)
}

// Cosine returns the cosine similarity of two vectors, mapped into [0,1].
// Mismatched or empty vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	// Negative similarity carries no merge signal; the score contract is [0,1].
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Jaccard returns |A∩B| / |A∪B| over normalized strings. Two empty sets are
// in vacuous agreement and score 1, which keeps tag-less and edge-less
// near-duplicates mergeable.
func Jaccard(a, b []string) float64 {
	setA := normalizeSet(a)
	setB := normalizeSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for k := range setA {
		if setB[k] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func normalizeSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key != "" {
			set[key] = true
		}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
