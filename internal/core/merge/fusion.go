package merge

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
)

// FusionStrategy names how a field combines when two representations merge.
type FusionStrategy int

const (
	// WeightedAverage fuses numeric fields by confidence-weighted mean over
	// every provenance entry.
	WeightedAverage FusionStrategy = iota
	// SetUnion merges collection fields, deduplicated and sorted.
	SetUnion
	// KeepHighestConfidence keeps whichever value carries the stronger
	// confidence; ties keep the existing value.
	KeepHighestConfidence
)

// fieldStrategies is the per-field fusion table. Fields not listed keep the
// existing canonical value untouched.
var fieldStrategies = map[string]FusionStrategy{
	"difficulty":  WeightedAverage,
	"tags":        SetUnion,
	"name":        KeepHighestConfidence,
	"description": KeepHighestConfidence,
}

// StrategyFor reports the fusion strategy applied to field. Unknown fields
// are never fused.
func StrategyFor(field string) (FusionStrategy, bool) {
	s, ok := fieldStrategies[field]
	return s, ok
}

// Fuser folds candidate attributes into a canonical concept. Provenance is
// append-only: fused scalar values are recomputed from the full entry history
// so a replayed merge converges to the same state.
type Fuser struct {
	cfg config.ResolutionConfig
	now func() time.Time
}

func NewFuser(cfg config.ResolutionConfig) *Fuser {
	return &Fuser{cfg: cfg, now: time.Now}
}

// Fuse merges cand into existing and returns the updated canonical. The
// existing concept is not mutated.
func (f *Fuser) Fuse(existing model.CanonicalConcept, cand model.ConceptCandidate) model.CanonicalConcept {
	out := existing
	out.Provenance = append([]model.ProvenanceEntry(nil), existing.Provenance...)

	conf := cand.Confidence
	if conf <= 0 {
		conf = f.cfg.NewValueConfidence
	}
	now := f.now().UTC()

	// Concepts written before provenance tracking get a synthetic entry for
	// their current value so the recomputation below has a base to weigh.
	f.seedLegacy(&out, "difficulty", existing.Difficulty)
	f.seedLegacy(&out, "name", existing.Name)
	if existing.Description != "" {
		f.seedLegacy(&out, "description", existing.Description)
	}

	out.Provenance = append(out.Provenance,
		model.ProvenanceEntry{Field: "difficulty", Value: cand.Difficulty, Confidence: conf, SourceBatchID: cand.SourceBatchID, RecordedAt: now},
		model.ProvenanceEntry{Field: "name", Value: cand.Name, Confidence: conf, SourceBatchID: cand.SourceBatchID, RecordedAt: now},
	)
	if cand.Description != "" {
		out.Provenance = append(out.Provenance,
			model.ProvenanceEntry{Field: "description", Value: cand.Description, Confidence: conf, SourceBatchID: cand.SourceBatchID, RecordedAt: now})
	}

	out.Difficulty = f.weightedAverage(out.Provenance, "difficulty")
	out.Name = f.highestConfidence(out.Provenance, "name", existing.Name)
	out.Description = f.highestConfidence(out.Provenance, "description", existing.Description)
	out.Tags = unionTags(existing.Tags, cand.Tags)
	out.Embedding = fuseEmbedding(existing.Embedding, cand.Embedding, canonicalConfidence(existing), conf)
	out.UpdatedAt = now
	return out
}

func (f *Fuser) seedLegacy(c *model.CanonicalConcept, field string, value any) {
	for _, p := range c.Provenance {
		if p.Field == field {
			return
		}
	}
	c.Provenance = append(c.Provenance, model.ProvenanceEntry{
		Field:      field,
		Value:      value,
		Confidence: f.cfg.ExistingConfidence,
		RecordedAt: c.CreatedAt,
	})
}

func (f *Fuser) weightedAverage(entries []model.ProvenanceEntry, field string) float64 {
	var sum, weight float64
	for _, p := range entries {
		if p.Field != field {
			continue
		}
		v, ok := asFloat(p.Value)
		if !ok {
			continue
		}
		w := p.Confidence
		if w <= 0 {
			w = 1e-3
		}
		sum += v * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func (f *Fuser) highestConfidence(entries []model.ProvenanceEntry, field, fallback string) string {
	best := fallback
	bestConf := math.Inf(-1)
	for _, p := range entries {
		s, ok := p.Value.(string)
		if p.Field != field || !ok || s == "" {
			continue
		}
		// Strictly greater keeps the earlier value on ties.
		if p.Confidence > bestConf {
			best = s
			bestConf = p.Confidence
		}
	}
	return best
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, t := range append(append([]string(nil), a...), b...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// fuseEmbedding blends the two vectors by confidence and renormalizes.
// Dimension mismatches keep the existing vector; a missing side yields the
// other unchanged.
func fuseEmbedding(existing, incoming []float32, existingConf, incomingConf float64) []float32 {
	if len(incoming) == 0 {
		return existing
	}
	if len(existing) == 0 {
		return incoming
	}
	if len(existing) != len(incoming) {
		return existing
	}
	if existingConf <= 0 {
		existingConf = 1e-3
	}
	if incomingConf <= 0 {
		incomingConf = 1e-3
	}
	total := existingConf + incomingConf
	fused := make([]float64, len(existing))
	var norm float64
	for i := range existing {
		fused[i] = (float64(existing[i])*existingConf + float64(incoming[i])*incomingConf) / total
		norm += fused[i] * fused[i]
	}
	out := make([]float32, len(fused))
	if norm == 0 {
		copy(out, existing)
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range fused {
		out[i] = float32(v / norm)
	}
	return out
}

// NewCanonical materializes a CREATE decision into a canonical concept with
// the candidate's values as the first provenance entries.
func (f *Fuser) NewCanonical(id, domain string, cand model.ConceptCandidate) model.CanonicalConcept {
	conf := cand.Confidence
	if conf <= 0 {
		conf = f.cfg.NewValueConfidence
	}
	now := f.now().UTC()
	c := model.CanonicalConcept{
		ConceptID:   id,
		Name:        cand.Name,
		Description: cand.Description,
		Domain:      domain,
		Embedding:   cand.Embedding,
		Tags:        unionTags(cand.Tags, nil),
		Difficulty:  cand.Difficulty,
		CreatedAt:   now,
		UpdatedAt:   now,
		Provenance: []model.ProvenanceEntry{
			{Field: "difficulty", Value: cand.Difficulty, Confidence: conf, SourceBatchID: cand.SourceBatchID, RecordedAt: now},
			{Field: "name", Value: cand.Name, Confidence: conf, SourceBatchID: cand.SourceBatchID, RecordedAt: now},
		},
	}
	if cand.Description != "" {
		c.Provenance = append(c.Provenance, model.ProvenanceEntry{
			Field: "description", Value: cand.Description, Confidence: conf, SourceBatchID: cand.SourceBatchID, RecordedAt: now})
	}
	return c
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
