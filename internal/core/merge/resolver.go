// Package merge decides MERGE vs CREATE per candidate and fuses attributes
// on merge without ever overwriting history.
package merge

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// ScoredMatch pairs a retrieved canonical concept with its stage-2 score.
type ScoredMatch struct {
	Concept model.CanonicalConcept
	Score   float64
}

// Resolver applies the merge threshold and mints deterministic concept ids
// for CREATE decisions.
type Resolver struct {
	cfg config.ResolutionConfig
	log *logger.Logger
}

func NewResolver(cfg config.ResolutionConfig, log *logger.Logger) *Resolver {
	return &Resolver{cfg: cfg, log: log.With("component", "merge")}
}

// Resolve picks the best-scoring match. At or above the merge threshold the
// candidate merges into it; below, a new concept is created. With no matches
// at all the action is always CREATE. taken reports ids already claimed (in
// the graph or earlier in this batch) for collision suffixing.
func (r *Resolver) Resolve(cand model.ConceptCandidate, matches []ScoredMatch, domain string, taken func(id string) bool) model.MergeDecision {
	if len(matches) == 0 {
		return model.MergeDecision{
			Candidate: cand,
			Action:    model.ActionCreate,
			TargetID:  r.MintConceptID(domain, cand.Name, taken),
		}
	}

	best := r.pickBest(cand, matches)
	if best.Score >= r.cfg.MergeThreshold {
		return model.MergeDecision{
			Candidate: cand,
			Action:    model.ActionMerge,
			TargetID:  best.Concept.ConceptID,
			Score:     best.Score,
		}
	}

	return model.MergeDecision{
		Candidate: cand,
		Action:    model.ActionCreate,
		TargetID:  r.MintConceptID(domain, cand.Name, taken),
		Score:     best.Score,
	}
}

// pickBest resolves ties within tie_epsilon of the maximum score to the
// highest-confidence canonical, then the smallest id, and logs the ambiguity
// rather than dropping it. Deterministic by construction.
func (r *Resolver) pickBest(cand model.ConceptCandidate, matches []ScoredMatch) ScoredMatch {
	sorted := make([]ScoredMatch, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Concept.ConceptID < sorted[j].Concept.ConceptID
	})

	top := sorted[0]
	var contenders []ScoredMatch
	for _, m := range sorted {
		if top.Score-m.Score <= r.cfg.TieEpsilon {
			contenders = append(contenders, m)
		}
	}
	if len(contenders) <= 1 {
		return top
	}

	ids := make([]string, 0, len(contenders))
	for _, m := range contenders {
		ids = append(ids, m.Concept.ConceptID)
	}
	r.log.Warn("ambiguous match, resolving by canonical confidence",
		"candidate", cand.Name, "score", top.Score, "contenders", ids)

	best := contenders[0]
	bestConf := canonicalConfidence(best.Concept)
	for _, m := range contenders[1:] {
		conf := canonicalConfidence(m.Concept)
		if conf > bestConf || (conf == bestConf && m.Concept.ConceptID < best.Concept.ConceptID) {
			best = m
			bestConf = conf
		}
	}
	return best
}

// canonicalConfidence is the strongest confidence ever recorded for the
// concept; concepts without provenance count as fully trusted.
func canonicalConfidence(c model.CanonicalConcept) float64 {
	if len(c.Provenance) == 0 {
		return 1.0
	}
	maxConf := 0.0
	for _, p := range c.Provenance {
		if p.Confidence > maxConf {
			maxConf = p.Confidence
		}
	}
	return maxConf
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// MintConceptID derives a stable id from the domain namespace and the
// normalized name, appending a numeric suffix on collision. Names that
// normalize to nothing fall back to a uuid so the id is still unique.
func (r *Resolver) MintConceptID(domain, name string, taken func(id string) bool) string {
	slug := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = uuid.New().String()
	}
	if domain == "" {
		domain = "general"
	}

	base := fmt.Sprintf("%s.%s", strings.ToLower(domain), slug)
	if taken == nil || !taken(base) {
		return base
	}
	for i := 2; ; i++ {
		id := fmt.Sprintf("%s-%d", base, i)
		if !taken(id) {
			return id
		}
	}
}
