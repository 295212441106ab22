// Package validate is the last gate before persistence: structural rules are
// checked against the union of the existing graph and the incoming batch, and
// anything that would corrupt ordering semantics is rejected item by item.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// conceptIDPattern is the canonical id grammar; anything else is rejected
// outright since ids are embedded in downstream keys and URLs.
var conceptIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validator screens resolved nodes and edges. Repairable defects (difficulty
// out of range) are clamped and reported; structural defects (bad ids,
// dangling endpoints, ordering cycles) reject the individual item only.
type Validator struct {
	cfg config.ValidationConfig
	log *logger.Logger

	orderingTypes map[model.RelationshipType]struct{}
}

func NewValidator(cfg config.ValidationConfig, log *logger.Logger) *Validator {
	types := cfg.OrderingTypes
	if len(types) == 0 {
		types = model.DefaultOrderingTypes()
	}
	ordering := make(map[model.RelationshipType]struct{}, len(types))
	for _, t := range types {
		ordering[model.RelationshipType(t)] = struct{}{}
	}
	return &Validator{cfg: cfg, log: log.With("component", "validate"), orderingTypes: ordering}
}

// Validate partitions the batch. existingOrdering holds the graph's current
// ordering-class adjacency (source id to target ids); accepted edges are
// checked against it incrementally so a batch can never introduce a cycle,
// even one spanning edges that were already persisted.
func (v *Validator) Validate(nodes []model.CanonicalConcept, edges []model.ResolvedEdge, existingOrdering map[string][]string) model.ValidationResult {
	var res model.ValidationResult

	known := make(map[string]struct{}, len(nodes)+len(existingOrdering))
	for id := range existingOrdering {
		known[id] = struct{}{}
		for _, t := range existingOrdering[id] {
			known[t] = struct{}{}
		}
	}

	for _, n := range nodes {
		n, fixes, reject := v.checkNode(n)
		if reject != "" {
			res.RejectedNodes = append(res.RejectedNodes, model.RejectedNode{ConceptID: n.ConceptID, Reason: reject})
			v.log.Warn("concept rejected", "concept_id", n.ConceptID, "reason", reject)
			continue
		}
		res.RepairedNodes = append(res.RepairedNodes, fixes...)
		res.Nodes = append(res.Nodes, n)
		known[n.ConceptID] = struct{}{}
	}

	// Cycle checking is order-sensitive, so edges are processed in a stable
	// order: the first edge of a would-be cycle wins, the closing edge loses.
	ordered := make([]model.ResolvedEdge, len(edges))
	copy(ordered, edges)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SourceID != ordered[j].SourceID {
			return ordered[i].SourceID < ordered[j].SourceID
		}
		if ordered[i].TargetID != ordered[j].TargetID {
			return ordered[i].TargetID < ordered[j].TargetID
		}
		return ordered[i].Type < ordered[j].Type
	})

	adjacency := make(map[string][]string, len(existingOrdering))
	for src, targets := range existingOrdering {
		adjacency[src] = append([]string(nil), targets...)
	}

	for _, e := range ordered {
		e, fixes, reject := v.checkEdge(e, known, adjacency)
		if reject != "" {
			res.RejectedEdges = append(res.RejectedEdges, model.RejectedEdge{Edge: e, Reason: reject})
			v.log.Warn("relationship rejected",
				"source", e.SourceID, "target", e.TargetID, "type", e.Type, "reason", reject)
			continue
		}
		res.RepairedEdges = append(res.RepairedEdges, fixes...)
		res.Accepted = append(res.Accepted, e)
		if v.isOrdering(e.Type) {
			adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
		}
	}
	return res
}

func (v *Validator) checkNode(n model.CanonicalConcept) (model.CanonicalConcept, []model.NodeFix, string) {
	if !conceptIDPattern.MatchString(n.ConceptID) {
		return n, nil, fmt.Sprintf("concept_id %q does not match id grammar", n.ConceptID)
	}
	if strings.TrimSpace(n.Name) == "" {
		return n, nil, "empty name"
	}

	var fixes []model.NodeFix
	if n.Difficulty < v.cfg.DifficultyMin || n.Difficulty > v.cfg.DifficultyMax {
		clamped := clamp(n.Difficulty, v.cfg.DifficultyMin, v.cfg.DifficultyMax)
		fixes = append(fixes, model.NodeFix{
			ConceptID: n.ConceptID,
			Field:     "difficulty",
			From:      n.Difficulty,
			To:        clamped,
		})
		n.Difficulty = clamped
	}
	return n, fixes, ""
}

func (v *Validator) checkEdge(e model.ResolvedEdge, known map[string]struct{}, adjacency map[string][]string) (model.ResolvedEdge, []model.EdgeFix, string) {
	if _, ok := known[e.SourceID]; !ok {
		return e, nil, fmt.Sprintf("source %q is not a known concept", e.SourceID)
	}
	if _, ok := known[e.TargetID]; !ok {
		return e, nil, fmt.Sprintf("target %q is not a known concept", e.TargetID)
	}

	var fixes []model.EdgeFix
	if e.Weight < 0 || e.Weight > 1 {
		clamped := clamp(e.Weight, 0, 1)
		fixes = append(fixes, model.EdgeFix{Edge: e, Field: "weight", From: e.Weight, To: clamped})
		e.Weight = clamped
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		clamped := clamp(e.Confidence, 0, 1)
		fixes = append(fixes, model.EdgeFix{Edge: e, Field: "confidence", From: e.Confidence, To: clamped})
		e.Confidence = clamped
	}

	if !v.isOrdering(e.Type) {
		return e, fixes, ""
	}
	if e.SourceID == e.TargetID {
		return e, nil, "ordering self-loop"
	}
	if path := pathBetween(adjacency, e.TargetID, e.SourceID); path != nil {
		v.log.Warn("ordering cycle detected",
			"closing_edge", fmt.Sprintf("%s->%s", e.SourceID, e.TargetID),
			"existing_path", strings.Join(path, " -> "))
		return e, nil, fmt.Sprintf("would close ordering cycle via %s", strings.Join(path, " -> "))
	}
	return e, fixes, ""
}

func (v *Validator) isOrdering(t model.RelationshipType) bool {
	_, ok := v.orderingTypes[t]
	return ok
}

// pathBetween returns a from->to path over adjacency, or nil when to is
// unreachable. Iterative DFS with sorted neighbor expansion so the reported
// conflict path is deterministic.
func pathBetween(adjacency map[string][]string, from, to string) []string {
	if from == to {
		return []string{from}
	}
	parent := map[string]string{from: ""}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		neighbors := append([]string(nil), adjacency[cur]...)
		sort.Strings(neighbors)
		for i := len(neighbors) - 1; i >= 0; i-- {
			next := neighbors[i]
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			if next == to {
				var path []string
				for n := to; n != ""; n = parent[n] {
					path = append([]string{n}, path...)
				}
				return path
			}
			stack = append(stack, next)
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
