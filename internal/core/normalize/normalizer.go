// Package normalize deduplicates candidates arising from the same ingestion
// batch before anything is compared against the graph.
package normalize

import (
	"math"
	"sort"
	"strings"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/score"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// Normalizer performs single-linkage clustering over same-batch candidates
// using the multi-factor scorer with a threshold stricter than cross-batch
// merging. O(n²) on batch size; batches are tens to low hundreds and no
// graph retrieval happens here.
type Normalizer struct {
	scorer    *score.Scorer
	threshold float64
	log       *logger.Logger
}

func NewNormalizer(scorer *score.Scorer, threshold float64, log *logger.Logger) *Normalizer {
	return &Normalizer{
		scorer:    scorer,
		threshold: threshold,
		log:       log.With("component", "normalize"),
	}
}

// Normalize clusters the batch's candidates and collapses each cluster into
// one representative. Relationship candidates provide the batch-local
// ordering neighbor sets for structural scoring.
func (n *Normalizer) Normalize(batch model.Batch) []model.ConceptCluster {
	candidates := batch.Concepts
	if len(candidates) == 0 {
		return nil
	}

	entities := n.buildEntities(batch)

	// Pairwise pass building an undirected similarity adjacency.
	adj := make(map[int][]int, len(candidates))
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if n.scorer.Score(entities[i], entities[j]) >= n.threshold {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}

	// Single linkage: connected components of the similarity graph.
	visited := make([]bool, len(candidates))
	var clusters []model.ConceptCluster
	for i := range candidates {
		if visited[i] {
			continue
		}
		var component []int
		dfs(i, adj, visited, &component)
		sort.Ints(component)

		members := make([]model.ConceptCandidate, 0, len(component))
		for _, idx := range component {
			members = append(members, candidates[idx])
		}
		cluster := model.ConceptCluster{
			Members:        members,
			Representative: collapse(members),
		}
		clusters = append(clusters, cluster)

		if len(members) > 1 {
			names := make([]string, 0, len(members))
			for _, m := range members {
				names = append(names, m.Name)
			}
			n.log.Info("collapsed within-batch duplicates",
				"batch_id", batch.BatchID,
				"representative", cluster.Representative.Name,
				"members", names)
		}
	}
	return clusters
}

func dfs(u int, adj map[int][]int, visited []bool, component *[]int) {
	visited[u] = true
	*component = append(*component, u)
	for _, v := range adj[u] {
		if !visited[v] {
			dfs(v, adj, visited, component)
		}
	}
}

// buildEntities converts each candidate into its scoring view. Neighbor sets
// are the normalized names of its batch-local ordering targets.
func (n *Normalizer) buildEntities(batch model.Batch) []score.Entity {
	nameByLocal := make(map[string]string, len(batch.Concepts))
	for _, c := range batch.Concepts {
		nameByLocal[c.LocalID] = c.Name
	}

	ordering := make(map[string]bool)
	for _, t := range model.DefaultOrderingTypes() {
		ordering[t] = true
	}

	neighbors := make(map[string][]string)
	for _, r := range batch.Relationships {
		if !ordering[string(r.Type)] {
			continue
		}
		if name, ok := nameByLocal[r.TargetLocalID]; ok {
			neighbors[r.SourceLocalID] = append(neighbors[r.SourceLocalID], strings.ToLower(name))
		}
	}

	entities := make([]score.Entity, len(batch.Concepts))
	for i, c := range batch.Concepts {
		entities[i] = score.Entity{
			Embedding: c.Embedding,
			Tags:      c.Tags,
			Neighbors: neighbors[c.LocalID],
		}
	}
	return entities
}

// collapse folds a cluster into one representative: confidence-weighted
// scalar averages and embedding centroid, tag union, identity fields from
// the highest-confidence member.
func collapse(members []model.ConceptCandidate) model.ConceptCandidate {
	if len(members) == 1 {
		return members[0]
	}

	best := members[0]
	var confSum, difficulty float64
	tagSet := make(map[string]bool)
	var centroid []float64

	for _, m := range members {
		w := m.Confidence
		if w <= 0 {
			w = 1e-3
		}
		confSum += w
		difficulty += m.Difficulty * w
		for _, t := range m.Tags {
			tagSet[t] = true
		}
		if len(m.Embedding) > 0 {
			if centroid == nil {
				centroid = make([]float64, len(m.Embedding))
			}
			if len(m.Embedding) == len(centroid) {
				for i, v := range m.Embedding {
					centroid[i] += float64(v) * w
				}
			}
		}
		if m.Confidence > best.Confidence {
			best = m
		}
	}

	rep := best
	rep.Difficulty = difficulty / confSum
	rep.Tags = sortedKeys(tagSet)
	if centroid != nil {
		rep.Embedding = normalizeVector(centroid)
	}
	return rep
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeVector(v []float64) []float32 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}
