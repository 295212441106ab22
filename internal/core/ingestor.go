// Package core wires the ingestion pipeline: idempotency gate, within-batch
// normalization, candidate retrieval and scoring, merge resolution, graph
// validation and staged persistence, in that order.
package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/fingerprint"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/merge"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/normalize"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/persist"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/retrieve"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/score"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/validate"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/driver"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/events"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/kgerr"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// retrievalConcurrency bounds parallel graph lookups per batch.
const retrievalConcurrency = 8

// Ingestor runs one extraction batch end to end against the knowledge graph.
type Ingestor struct {
	cfg        *config.Config
	driver     driver.GraphDriver
	registry   *fingerprint.Registry
	normalizer *normalize.Normalizer
	retriever  *retrieve.Retriever
	scorer     *score.Scorer
	resolver   *merge.Resolver
	fuser      *merge.Fuser
	validator  *validate.Validator
	persister  *persist.Persister
	publisher  events.Publisher
	log        *logger.Logger

	// domainLocks serializes batches per domain so concurrent ingestion of
	// the same subject area cannot race on id minting or cycle checks.
	mu          sync.Mutex
	domainLocks map[string]*sync.Mutex
}

func NewIngestor(cfg *config.Config, d driver.GraphDriver, registry *fingerprint.Registry, publisher events.Publisher, log *logger.Logger) *Ingestor {
	scorer := score.NewScorer(cfg.Scoring)
	return &Ingestor{
		cfg:         cfg,
		driver:      d,
		registry:    registry,
		normalizer:  normalize.NewNormalizer(scorer, cfg.Resolution.WithinBatchThreshold, log),
		retriever:   retrieve.NewRetriever(d, cfg.Resolution.TopK, cfg.Resolution.LexicalFloor, cfg.Resolution.RetrieveTimeout(), log),
		scorer:      scorer,
		resolver:    merge.NewResolver(cfg.Resolution, log),
		fuser:       merge.NewFuser(cfg.Resolution),
		validator:   validate.NewValidator(cfg.Validation, log),
		persister:   persist.NewPersister(d, cfg.Persistence, log),
		publisher:   publisher,
		log:         log.With("component", "ingestor"),
		domainLocks: map[string]*sync.Mutex{},
	}
}

// ProcessBatch ingests one batch. A batch whose fingerprint was already
// processed returns a skipped report with zero writes unless force is set.
// Fatal input errors abort before any graph mutation and leave the
// fingerprint NEW, so a corrected resubmission is not treated as a replay.
func (ing *Ingestor) ProcessBatch(ctx context.Context, batch model.Batch, force bool) (*model.PersistReport, error) {
	if err := validateInput(batch); err != nil {
		return nil, err
	}

	checksum := fingerprint.Checksum(batch)
	outcome, err := ing.registry.Register(ctx, checksum, force)
	if err != nil {
		return nil, err
	}
	if outcome == fingerprint.OutcomeSkipped {
		ing.log.Info("batch skipped, fingerprint already processed",
			"document_id", batch.DocumentID, "batch_id", batch.BatchID)
		return &model.PersistReport{BatchID: batch.BatchID, Status: model.BatchSkipped}, nil
	}

	lock := ing.domainLock(batch.Domain)
	lock.Lock()
	defer lock.Unlock()

	ordering, names, err := ing.loadOrdering(ctx)
	if err != nil {
		return nil, err
	}

	clusters := ing.normalizer.Normalize(batch)

	matches, err := ing.retrieveAll(ctx, clusters)
	if err != nil {
		return nil, err
	}

	nodes, localToCanonical, added, merged := ing.resolveAll(batch, clusters, matches, ordering, names)
	edges := remapEdges(batch.Relationships, localToCanonical)

	result := ing.validator.Validate(nodes, edges, ordering)

	nodesWritten, edgesWritten, failures, err := ing.persister.Persist(ctx, batch.BatchID, result.Nodes, result.Accepted)
	if err != nil {
		return nil, err
	}

	report := &model.PersistReport{
		BatchID:        batch.BatchID,
		NodesWritten:   nodesWritten,
		EdgesWritten:   edgesWritten,
		ConceptsAdded:  added,
		ConceptsMerged: merged,
		Failures:       failures,
		RejectedNodes:  result.RejectedNodes,
		RejectedEdges:  result.RejectedEdges,
	}
	if result.Clean() && len(failures) == 0 {
		report.Status = model.BatchProcessed
		err = ing.registry.MarkProcessed(ctx, checksum)
	} else {
		report.Status = model.BatchPartial
		err = ing.registry.MarkPartial(ctx, checksum)
	}
	if err != nil {
		// The graph writes landed; a registry failure only degrades replay
		// detection, so it is logged rather than failing the batch.
		ing.log.Error("fingerprint status update failed", "checksum", checksum, "error", err)
	}

	ing.publish(ctx, batch, report)

	ing.log.Info("batch ingested",
		"document_id", batch.DocumentID,
		"batch_id", batch.BatchID,
		"status", report.Status,
		"added", added,
		"merged", merged,
		"rejected_nodes", len(result.RejectedNodes),
		"rejected_edges", len(result.RejectedEdges))
	return report, nil
}

// validateInput enforces the batch contract. Violations are fatal: they
// indicate extractor bugs, not transient conditions.
func validateInput(batch model.Batch) error {
	if strings.TrimSpace(batch.DocumentID) == "" {
		return kgerr.Fatalf("batch has no document_id")
	}
	if strings.TrimSpace(batch.BatchID) == "" {
		return kgerr.Fatalf("batch has no batch_id")
	}
	if len(batch.Concepts) == 0 {
		return kgerr.Fatalf("batch %s has no concepts", batch.BatchID)
	}

	seen := make(map[string]struct{}, len(batch.Concepts))
	dim := -1
	for _, c := range batch.Concepts {
		if strings.TrimSpace(c.LocalID) == "" {
			return kgerr.Fatalf("concept %q has no local_id", c.Name)
		}
		if _, dup := seen[c.LocalID]; dup {
			return kgerr.Fatalf("duplicate local_id %q", c.LocalID)
		}
		seen[c.LocalID] = struct{}{}
		if strings.TrimSpace(c.Name) == "" {
			return kgerr.Fatalf("concept %s has no name", c.LocalID)
		}
		if len(c.Embedding) == 0 {
			return kgerr.Fatalf("concept %s has no embedding", c.LocalID)
		}
		if dim == -1 {
			dim = len(c.Embedding)
		} else if len(c.Embedding) != dim {
			return kgerr.Fatalf("concept %s embedding dimension %d, batch uses %d", c.LocalID, len(c.Embedding), dim)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return kgerr.Fatalf("concept %s confidence %v outside [0,1]", c.LocalID, c.Confidence)
		}
	}
	for _, r := range batch.Relationships {
		// Unknown endpoints are not checked here: a dangling reference is a
		// per-item rejection during validation, not a contract violation.
		if r.Type == "" {
			return kgerr.Fatalf("relationship %s->%s has no type", r.SourceLocalID, r.TargetLocalID)
		}
	}
	return nil
}

func (ing *Ingestor) domainLock(domain string) *sync.Mutex {
	key := strings.ToLower(strings.TrimSpace(domain))
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if l, ok := ing.domainLocks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	ing.domainLocks[key] = l
	return l
}

// loadOrdering fetches the graph's current ordering-class edges once per
// batch, for both structural scoring and incremental cycle checks.
func (ing *Ingestor) loadOrdering(ctx context.Context) (map[string][]string, map[string]string, error) {
	types := ing.cfg.Validation.OrderingTypes
	if len(types) == 0 {
		types = model.DefaultOrderingTypes()
	}
	params := map[string]interface{}{"types": types}
	res, err := ing.driver.ExecuteQuery(ctx, driver.OrderingEdgesQuery, params)
	if err != nil {
		return nil, nil, kgerr.Retryable(err, "ingest: load ordering edges")
	}

	adjacency := map[string][]string{}
	names := map[string]string{}
	for _, rec := range res.Records {
		get := func(key string) string {
			v, _ := rec.Get(key)
			return driver.AsString(v)
		}
		src, dst := get("source_id"), get("target_id")
		if src == "" || dst == "" {
			continue
		}
		adjacency[src] = append(adjacency[src], dst)
		names[src] = get("source_name")
		names[dst] = get("target_name")
	}
	return adjacency, names, nil
}

// retrieveAll fans out candidate retrieval with bounded concurrency. Any
// retrieval error aborts the batch; the fingerprint stays NEW so the caller
// can retry.
func (ing *Ingestor) retrieveAll(ctx context.Context, clusters []model.ConceptCluster) ([][]model.Match, error) {
	matches := make([][]model.Match, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(retrievalConcurrency)
	for i, cluster := range clusters {
		i, cluster := i, cluster
		g.Go(func() error {
			found, err := ing.retriever.Retrieve(gctx, cluster.Representative)
			if err != nil {
				return err
			}
			matches[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matches, nil
}

// resolveAll scores each cluster's coarse matches, decides MERGE vs CREATE
// sequentially (so minted ids and logs are deterministic), and materializes
// the canonical nodes to persist. localToCanonical maps every original
// batch-local id, including collapsed duplicates, to its final concept id.
func (ing *Ingestor) resolveAll(batch model.Batch, clusters []model.ConceptCluster, matches [][]model.Match, ordering map[string][]string, names map[string]string) (nodes []model.CanonicalConcept, localToCanonical map[string]string, added, merged int) {
	localToCanonical = make(map[string]string, len(batch.Concepts))
	claimed := make(map[string]struct{})
	for id := range names {
		claimed[id] = struct{}{}
	}
	for _, ms := range matches {
		for _, m := range ms {
			claimed[m.Concept.ConceptID] = struct{}{}
		}
	}
	taken := func(id string) bool {
		_, ok := claimed[id]
		return ok
	}

	batchNeighbors := batchNeighborNames(batch)

	// Several clusters may merge into the same canonical; each fusion must
	// build on the previous one so no provenance entry is overwritten. One
	// row per concept id reaches the persister.
	fused := make(map[string]model.CanonicalConcept)
	var order []string

	for i, cluster := range clusters {
		rep := cluster.Representative
		if rep.SourceBatchID == "" {
			rep.SourceBatchID = batch.BatchID
		}
		candEntity := score.Entity{
			Embedding: rep.Embedding,
			Tags:      rep.Tags,
			Neighbors: clusterNeighbors(cluster, batchNeighbors),
		}

		scored := make([]merge.ScoredMatch, 0, len(matches[i]))
		for _, m := range matches[i] {
			scored = append(scored, merge.ScoredMatch{
				Concept: m.Concept,
				Score:   ing.scorer.Score(candEntity, ing.canonicalEntity(m.Concept, ordering, names)),
			})
		}

		decision := ing.resolver.Resolve(rep, scored, batch.Domain, taken)
		claimed[decision.TargetID] = struct{}{}

		switch decision.Action {
		case model.ActionMerge:
			base, ok := fused[decision.TargetID]
			if !ok {
				base = findConcept(matches[i], decision.TargetID)
				order = append(order, decision.TargetID)
			}
			fused[decision.TargetID] = ing.fuser.Fuse(base, rep)
			merged++
			ing.log.Info("concept merged",
				"candidate", rep.Name, "target", decision.TargetID, "score", fmt.Sprintf("%.3f", decision.Score))
		default:
			fused[decision.TargetID] = ing.fuser.NewCanonical(decision.TargetID, batch.Domain, rep)
			order = append(order, decision.TargetID)
			added++
			ing.log.Debug("concept created", "concept_id", decision.TargetID, "name", rep.Name)
		}

		for _, member := range cluster.Members {
			localToCanonical[member.LocalID] = decision.TargetID
		}
	}

	nodes = make([]model.CanonicalConcept, 0, len(order))
	for _, id := range order {
		nodes = append(nodes, fused[id])
	}
	return nodes, localToCanonical, added, merged
}

// clusterNeighbors unions the ordering neighbor names of every cluster member.
// Collapsing duplicates must not narrow the structural view the representative
// is scored with.
func clusterNeighbors(cluster model.ConceptCluster, batchNeighbors map[string][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, member := range cluster.Members {
		for _, name := range batchNeighbors[member.LocalID] {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// canonicalEntity builds the scoring view of a graph-resident concept, with
// neighbors expressed as normalized names so they compare against batch-local
// neighbor names.
func (ing *Ingestor) canonicalEntity(c model.CanonicalConcept, ordering map[string][]string, names map[string]string) score.Entity {
	var neighbors []string
	for _, targetID := range ordering[c.ConceptID] {
		if name := names[targetID]; name != "" {
			neighbors = append(neighbors, strings.ToLower(strings.TrimSpace(name)))
		}
	}
	return score.Entity{Embedding: c.Embedding, Tags: c.Tags, Neighbors: neighbors}
}

// batchNeighborNames maps each local id to the normalized names of its
// ordering-relationship targets inside the batch.
func batchNeighborNames(batch model.Batch) map[string][]string {
	ordering := make(map[string]struct{}, 2)
	for _, t := range model.DefaultOrderingTypes() {
		ordering[t] = struct{}{}
	}
	nameByLocal := make(map[string]string, len(batch.Concepts))
	for _, c := range batch.Concepts {
		nameByLocal[c.LocalID] = strings.ToLower(strings.TrimSpace(c.Name))
	}
	out := map[string][]string{}
	for _, r := range batch.Relationships {
		if _, ok := ordering[string(r.Type)]; !ok {
			continue
		}
		if name := nameByLocal[r.TargetLocalID]; name != "" {
			out[r.SourceLocalID] = append(out[r.SourceLocalID], name)
		}
	}
	return out
}

func findConcept(matches []model.Match, id string) model.CanonicalConcept {
	for _, m := range matches {
		if m.Concept.ConceptID == id {
			return m.Concept
		}
	}
	return model.CanonicalConcept{ConceptID: id}
}

// remapEdges rewrites batch-local endpoints to canonical ids. Collapsed
// duplicates can make distinct local edges converge on the same endpoints;
// exact duplicates are dropped here, the graph MERGE would collapse them
// anyway.
func remapEdges(rels []model.RelationshipCandidate, localToCanonical map[string]string) []model.ResolvedEdge {
	seen := make(map[string]struct{}, len(rels))
	var out []model.ResolvedEdge
	for _, r := range rels {
		src, ok := localToCanonical[r.SourceLocalID]
		if !ok {
			src = r.SourceLocalID
		}
		dst, ok := localToCanonical[r.TargetLocalID]
		if !ok {
			dst = r.TargetLocalID
		}
		if src == dst && r.SourceLocalID != r.TargetLocalID {
			// Same-cluster members pointing at each other collapse to a
			// self-edge, which carries no information. A literal self-loop
			// from the extractor passes through so validation can report it.
			continue
		}
		key := src + "\x00" + dst + "\x00" + string(r.Type)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, model.ResolvedEdge{
			SourceID:   src,
			TargetID:   dst,
			Type:       r.Type,
			Weight:     r.Weight,
			Confidence: r.Confidence,
		})
	}
	return out
}

// publish emits the completion event with fresh graph totals. Failures are
// logged only; downstream consumers resync on their own schedule.
func (ing *Ingestor) publish(ctx context.Context, batch model.Batch, report *model.PersistReport) {
	event := model.BatchEvent{
		DocumentID:     batch.DocumentID,
		ConceptsAdded:  report.ConceptsAdded,
		ConceptsMerged: report.ConceptsMerged,
	}
	if res, err := ing.driver.ExecuteQuery(ctx, driver.GraphCountsQuery, nil); err == nil && len(res.Records) > 0 {
		if v, ok := res.Records[0].Get("concepts"); ok {
			event.TotalConcepts = driver.AsInt(v)
		}
		if v, ok := res.Records[0].Get("relationships"); ok {
			event.TotalRelationships = driver.AsInt(v)
		}
	}
	if err := ing.publisher.PublishBatch(ctx, event); err != nil {
		ing.log.Warn("batch event publish failed", "document_id", batch.DocumentID, "error", err)
	}
}
