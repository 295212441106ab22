// Package persist writes a validated batch to the graph in two phases:
// everything is first staged under batch-tagged labels, then promoted with
// idempotent upserts. Per-chunk failures are recorded and skipped so one bad
// chunk never blocks the rest of the batch.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rotisserie/eris"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/driver"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

type Persister struct {
	driver    driver.GraphDriver
	batchSize int
	log       *logger.Logger
	now       func() time.Time
}

func NewPersister(d driver.GraphDriver, cfg config.PersistenceConfig, log *logger.Logger) *Persister {
	size := cfg.BatchSize
	if size <= 0 {
		size = 100
	}
	return &Persister{driver: d, batchSize: size, log: log.With("component", "persist"), now: time.Now}
}

// Persist stages then promotes the batch. The returned failures are the
// chunks that could not be written; callers decide whether the batch counts
// as processed or partial. Staging records are cleared only after a fully
// clean promotion, otherwise they are left behind for inspection.
func (p *Persister) Persist(ctx context.Context, batchID string, nodes []model.CanonicalConcept, edges []model.ResolvedEdge) (nodesWritten, edgesWritten int, failures []model.PersistFailure, err error) {
	conceptRows, err := p.conceptRows(nodes)
	if err != nil {
		return 0, 0, nil, err
	}
	edgeRows := p.edgeRows(batchID, edges)

	if err := p.stage(ctx, batchID, conceptRows, edgeRows); err != nil {
		return 0, 0, nil, err
	}

	nodesWritten, nodeFailures := p.promote(ctx, driver.UpsertConceptsQuery, "concepts", conceptRows, nodeKeys(nodes))
	edgesWritten, edgeFailures := p.promote(ctx, driver.UpsertRelationshipsQuery, "rels", edgeRows, edgeKeys(edges))
	failures = append(nodeFailures, edgeFailures...)

	if len(failures) == 0 {
		p.clearStaging(ctx, batchID)
	} else {
		p.log.Warn("staging retained after partial promotion",
			"batch_id", batchID, "failures", len(failures))
	}
	return nodesWritten, edgesWritten, failures, nil
}

// stage writes the full batch to the staging labels. A staging failure aborts
// the whole persist step: nothing has touched canonical data yet, so the safe
// move is to stop and retry the batch later.
func (p *Persister) stage(ctx context.Context, batchID string, conceptRows, edgeRows []map[string]interface{}) error {
	for _, chunk := range chunks(conceptRows, p.batchSize) {
		_, err := p.driver.ExecuteQuery(ctx, driver.StageConceptsQuery, map[string]interface{}{
			"batch_id": batchID,
			"concepts": chunk,
		})
		if err != nil {
			return eris.Wrap(err, "persist: stage concepts")
		}
	}
	for _, chunk := range chunks(edgeRows, p.batchSize) {
		_, err := p.driver.ExecuteQuery(ctx, driver.StageRelationshipsQuery, map[string]interface{}{
			"batch_id": batchID,
			"rels":     chunk,
		})
		if err != nil {
			return eris.Wrap(err, "persist: stage relationships")
		}
	}
	return nil
}

// promote upserts rows chunk by chunk. keys parallels rows and names each
// record for failure reporting. The upsert queries return how many rows they
// touched; a relationship MATCH on a missing endpoint silently produces zero
// rows, so a short count means part of the chunk never landed. Such chunks are
// replayed row by row to attribute the misses.
func (p *Persister) promote(ctx context.Context, query, param string, rows []map[string]interface{}, keys []model.PersistFailure) (int, []model.PersistFailure) {
	written := 0
	var failures []model.PersistFailure
	for start := 0; start < len(rows); start += p.batchSize {
		end := start + p.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		res, err := p.driver.ExecuteQuery(ctx, query, map[string]interface{}{param: rows[start:end]})
		if err != nil {
			p.log.Error("chunk promotion failed", "param", param, "offset", start, "error", err)
			for _, k := range keys[start:end] {
				k.Reason = err.Error()
				failures = append(failures, k)
			}
			continue
		}
		if writtenCount(res, end-start) >= end-start {
			written += end - start
			continue
		}
		p.log.Warn("chunk promoted short, replaying row by row", "param", param, "offset", start)
		for i := start; i < end; i++ {
			rowRes, rowErr := p.driver.ExecuteQuery(ctx, query, map[string]interface{}{param: rows[i : i+1]})
			if rowErr != nil || writtenCount(rowRes, 1) == 0 {
				k := keys[i]
				k.Reason = "no production row written; endpoint missing"
				if rowErr != nil {
					k.Reason = rowErr.Error()
				}
				failures = append(failures, k)
				continue
			}
			written++
		}
	}
	return written, failures
}

// writtenCount reads the `written` aggregate an upsert query returns. A result
// without the count row is taken at face value as a full write.
func writtenCount(res neo4j.EagerResult, fallback int) int {
	if len(res.Records) == 0 {
		return fallback
	}
	v, ok := res.Records[0].Get("written")
	if !ok {
		return fallback
	}
	return driver.AsInt(v)
}

func (p *Persister) clearStaging(ctx context.Context, batchID string) {
	params := map[string]interface{}{"batch_id": batchID}
	if _, err := p.driver.ExecuteQuery(ctx, driver.ClearStagedConceptsQuery, params); err != nil {
		p.log.Warn("staged concept cleanup failed", "batch_id", batchID, "error", err)
	}
	if _, err := p.driver.ExecuteQuery(ctx, driver.ClearStagedRelationshipsQuery, params); err != nil {
		p.log.Warn("staged relationship cleanup failed", "batch_id", batchID, "error", err)
	}
}

func (p *Persister) conceptRows(nodes []model.CanonicalConcept) ([]map[string]interface{}, error) {
	now := p.now().UTC()
	rows := make([]map[string]interface{}, 0, len(nodes))
	for _, n := range nodes {
		provenance, err := json.Marshal(n.Provenance)
		if err != nil {
			return nil, eris.Wrapf(err, "persist: provenance for %s", n.ConceptID)
		}
		created := n.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows = append(rows, map[string]interface{}{
			"concept_id":      n.ConceptID,
			"name":            n.Name,
			"description":     n.Description,
			"embedding":       toFloat64(n.Embedding),
			"tags":            n.Tags,
			"difficulty":      n.Difficulty,
			"domain":          n.Domain,
			"provenance_json": string(provenance),
			"created_at":      created.Format(time.RFC3339Nano),
			"updated_at":      now.Format(time.RFC3339Nano),
		})
	}
	return rows, nil
}

func (p *Persister) edgeRows(batchID string, edges []model.ResolvedEdge) []map[string]interface{} {
	now := p.now().UTC().Format(time.RFC3339Nano)
	rows := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]interface{}{
			"source_id":  e.SourceID,
			"target_id":  e.TargetID,
			"rel_type":   string(e.Type),
			"weight":     e.Weight,
			"confidence": e.Confidence,
			"batch_id":   batchID,
			"updated_at": now,
		})
	}
	return rows
}

func nodeKeys(nodes []model.CanonicalConcept) []model.PersistFailure {
	keys := make([]model.PersistFailure, len(nodes))
	for i, n := range nodes {
		keys[i] = model.PersistFailure{Kind: "node", ID: n.ConceptID}
	}
	return keys
}

func edgeKeys(edges []model.ResolvedEdge) []model.PersistFailure {
	keys := make([]model.PersistFailure, len(edges))
	for i, e := range edges {
		keys[i] = model.PersistFailure{Kind: "edge", ID: fmt.Sprintf("%s-[%s]->%s", e.SourceID, e.Type, e.TargetID)}
	}
	return keys
}

// The bolt driver has no float32 list type; embeddings go over the wire as
// []float64.
func toFloat64(v []float32) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func chunks(rows []map[string]interface{}, size int) [][]map[string]interface{} {
	var out [][]map[string]interface{}
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
