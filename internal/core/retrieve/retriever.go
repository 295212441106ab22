// Package retrieve implements stage 1 of candidate resolution: narrowing
// the whole graph down to a bounded set of plausible matches per candidate.
package retrieve

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/score"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/driver"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/kgerr"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// Retriever returns the top-K nearest graph concepts for a candidate by
// embedding similarity, widened by a fuzzy lexical match on name to catch
// near-duplicate spellings the embedding space misses. If the vector index
// is unavailable it degrades to a linear scan instead of failing the batch.
type Retriever struct {
	driver       driver.GraphDriver
	topK         int
	lexicalFloor float64
	timeout      time.Duration
	log          *logger.Logger
}

func NewRetriever(d driver.GraphDriver, topK int, lexicalFloor float64, timeout time.Duration, log *logger.Logger) *Retriever {
	if topK <= 0 {
		topK = 20
	}
	return &Retriever{
		driver:       d,
		topK:         topK,
		lexicalFloor: lexicalFloor,
		timeout:      timeout,
		log:          log.With("component", "retrieve"),
	}
}

// Retrieve returns at most topK matches ordered by coarse score descending.
func (r *Retriever) Retrieve(ctx context.Context, cand model.ConceptCandidate) ([]model.Match, error) {
	qctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	byID := make(map[string]model.Match)

	vectorOK := r.vectorSearch(qctx, cand, byID)
	if !vectorOK {
		if err := r.linearScan(qctx, cand, byID); err != nil {
			return nil, err
		}
	}

	if err := r.lexicalWiden(qctx, cand, byID); err != nil {
		// Lexical widening is best-effort once the primary path succeeded.
		r.log.Warn("lexical widening failed", "candidate", cand.Name, "error", err)
	}

	matches := make([]model.Match, 0, len(byID))
	for _, m := range byID {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CoarseScore != matches[j].CoarseScore {
			return matches[i].CoarseScore > matches[j].CoarseScore
		}
		return matches[i].Concept.ConceptID < matches[j].Concept.ConceptID
	})
	if len(matches) > r.topK {
		matches = matches[:r.topK]
	}
	return matches, nil
}

// vectorSearch queries the ANN index. Returns false when the index path is
// unusable, signalling the caller to fall back.
func (r *Retriever) vectorSearch(ctx context.Context, cand model.ConceptCandidate, byID map[string]model.Match) bool {
	if len(cand.Embedding) == 0 {
		return false
	}
	res, err := r.driver.ExecuteQuery(ctx, driver.VectorSearchQuery, map[string]interface{}{
		"k":         r.topK,
		"embedding": cand.Embedding,
	})
	if err != nil {
		r.log.Warn("vector index query failed, falling back to linear scan",
			"candidate", cand.Name, "error", err)
		return false
	}
	for _, rec := range res.Records {
		concept := conceptFromRecord(rec)
		scoreVal, _ := rec.Get("score")
		byID[concept.ConceptID] = model.Match{
			Concept:     concept,
			CoarseScore: driver.AsFloat(scoreVal),
		}
	}
	return true
}

// linearScan is the degraded path: cosine computed in-process over all
// stored concepts. Store failures here are retryable; there is no further
// fallback.
func (r *Retriever) linearScan(ctx context.Context, cand model.ConceptCandidate, byID map[string]model.Match) error {
	res, err := r.driver.ExecuteQuery(ctx, driver.AllConceptsQuery, nil)
	if err != nil {
		return kgerr.Retryable(err, "retrieve: concept scan")
	}
	for _, rec := range res.Records {
		concept := conceptFromRecord(rec)
		sim := score.Cosine(cand.Embedding, concept.Embedding)
		if sim <= 0 {
			continue
		}
		byID[concept.ConceptID] = model.Match{Concept: concept, CoarseScore: sim}
	}
	return nil
}

// lexicalWiden unions in concepts whose names are within edit distance of
// the candidate's, regardless of their embedding rank.
func (r *Retriever) lexicalWiden(ctx context.Context, cand model.ConceptCandidate, byID map[string]model.Match) error {
	if r.lexicalFloor <= 0 || strings.TrimSpace(cand.Name) == "" {
		return nil
	}
	res, err := r.driver.ExecuteQuery(ctx, driver.ConceptNamesQuery, nil)
	if err != nil {
		return err
	}

	candName := strings.ToLower(strings.TrimSpace(cand.Name))
	var ids []interface{}
	for _, rec := range res.Records {
		idVal, _ := rec.Get("concept_id")
		nameVal, _ := rec.Get("name")
		id := driver.AsString(idVal)
		name := strings.ToLower(strings.TrimSpace(driver.AsString(nameVal)))
		if id == "" || name == "" {
			continue
		}
		if _, seen := byID[id]; seen {
			continue
		}
		if sim := levenshtein.Similarity(candName, name, nil); sim >= r.lexicalFloor {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	full, err := r.driver.ExecuteQuery(ctx, driver.ConceptsByIDsQuery, map[string]interface{}{"ids": ids})
	if err != nil {
		return err
	}
	for _, rec := range full.Records {
		concept := conceptFromRecord(rec)
		sim := score.Cosine(cand.Embedding, concept.Embedding)
		lexical := levenshtein.Similarity(candName, strings.ToLower(concept.Name), nil)
		coarse := sim
		if lexical > coarse {
			coarse = lexical
		}
		byID[concept.ConceptID] = model.Match{Concept: concept, CoarseScore: coarse}
	}
	return nil
}

func conceptFromRecord(rec *neo4j.Record) model.CanonicalConcept {
	get := func(key string) interface{} {
		v, _ := rec.Get(key)
		return v
	}

	concept := model.CanonicalConcept{
		ConceptID:   driver.AsString(get("concept_id")),
		Name:        driver.AsString(get("name")),
		Description: driver.AsString(get("description")),
		Domain:      driver.AsString(get("domain")),
		Embedding:   driver.AsVector(get("embedding")),
		Tags:        driver.AsStringSlice(get("tags")),
		Difficulty:  driver.AsFloat(get("difficulty")),
	}
	if raw := driver.AsString(get("provenance_json")); raw != "" {
		var entries []model.ProvenanceEntry
		if err := json.Unmarshal([]byte(raw), &entries); err == nil {
			concept.Provenance = entries
		}
	}
	return concept
}
