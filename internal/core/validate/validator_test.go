package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

func newTestValidator() *Validator {
	return NewValidator(config.ValidationConfig{
		DifficultyMin: 1,
		DifficultyMax: 5,
		OrderingTypes: model.DefaultOrderingTypes(),
	}, logger.NewNop())
}

func node(id string, difficulty float64) model.CanonicalConcept {
	return model.CanonicalConcept{ConceptID: id, Name: id, Difficulty: difficulty}
}

func edge(src, dst string, typ model.RelationshipType) model.ResolvedEdge {
	return model.ResolvedEdge{SourceID: src, TargetID: dst, Type: typ, Weight: 0.5, Confidence: 0.5}
}

func TestValidate_CleanBatch(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(
		[]model.CanonicalConcept{node("cs.a", 2), node("cs.b", 3)},
		[]model.ResolvedEdge{edge("cs.a", "cs.b", model.RelRequires)},
		nil,
	)
	assert.True(t, res.Clean())
	assert.Len(t, res.Nodes, 2)
	assert.Len(t, res.Accepted, 1)
}

func TestValidate_DifficultyClampIsRepairNotRejection(t *testing.T) {
	v := newTestValidator()
	res := v.Validate([]model.CanonicalConcept{node("cs.a", 7), node("cs.b", 0.2)}, nil, nil)

	assert.True(t, res.Clean())
	assert.Len(t, res.Nodes, 2)
	assert.Equal(t, 5.0, res.Nodes[0].Difficulty)
	assert.Equal(t, 1.0, res.Nodes[1].Difficulty)
	assert.Len(t, res.RepairedNodes, 2)
	assert.Equal(t, "difficulty", res.RepairedNodes[0].Field)
	assert.Equal(t, 7.0, res.RepairedNodes[0].From)
	assert.Equal(t, 5.0, res.RepairedNodes[0].To)
}

func TestValidate_RejectsMalformedIDs(t *testing.T) {
	v := newTestValidator()
	res := v.Validate([]model.CanonicalConcept{
		node("cs.valid", 3),
		node("CS.Upper", 3),
		node(".leading-dot", 3),
		node("", 3),
	}, nil, nil)

	assert.Len(t, res.Nodes, 1)
	assert.Len(t, res.RejectedNodes, 3)
}

func TestValidate_RejectsDanglingEndpoints(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(
		[]model.CanonicalConcept{node("cs.a", 3)},
		[]model.ResolvedEdge{
			edge("cs.a", "cs.ghost", model.RelRequires),
			edge("local-7", "cs.a", model.RelRelatedTo),
		},
		nil,
	)

	assert.Empty(t, res.Accepted)
	assert.Len(t, res.RejectedEdges, 2)
	assert.Contains(t, res.RejectedEdges[0].Reason, "cs.ghost")
}

func TestValidate_RejectsOrderingSelfLoop(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(
		[]model.CanonicalConcept{node("cs.a", 3)},
		[]model.ResolvedEdge{edge("cs.a", "cs.a", model.RelRequires)},
		nil,
	)
	assert.Empty(t, res.Accepted)
	assert.Len(t, res.RejectedEdges, 1)
	assert.Equal(t, "ordering self-loop", res.RejectedEdges[0].Reason)
}

func TestValidate_RejectsCycleWithinBatch(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(
		[]model.CanonicalConcept{node("cs.a", 3), node("cs.b", 3)},
		[]model.ResolvedEdge{
			edge("cs.a", "cs.b", model.RelRequires),
			edge("cs.b", "cs.a", model.RelRequires),
		},
		nil,
	)

	// Deterministic order: a->b sorts first and is kept, b->a closes the
	// cycle and is rejected.
	assert.Len(t, res.Accepted, 1)
	assert.Equal(t, "cs.a", res.Accepted[0].SourceID)
	assert.Len(t, res.RejectedEdges, 1)
	assert.Equal(t, "cs.b", res.RejectedEdges[0].Edge.SourceID)
	assert.Contains(t, res.RejectedEdges[0].Reason, "cycle")
}

func TestValidate_RejectsCycleAgainstExistingGraph(t *testing.T) {
	v := newTestValidator()
	// Graph already holds x -> y -> z; the batch tries z -> x.
	existing := map[string][]string{
		"cs.x": {"cs.y"},
		"cs.y": {"cs.z"},
	}
	res := v.Validate(
		[]model.CanonicalConcept{node("cs.z", 3), node("cs.x", 3)},
		[]model.ResolvedEdge{edge("cs.z", "cs.x", model.RelPrecedes)},
		existing,
	)

	assert.Empty(t, res.Accepted)
	assert.Len(t, res.RejectedEdges, 1)
	assert.Contains(t, res.RejectedEdges[0].Reason, "cs.x -> cs.y -> cs.z")
}

func TestValidate_NonOrderingTypesExemptFromCycles(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(
		[]model.CanonicalConcept{node("cs.a", 3), node("cs.b", 3)},
		[]model.ResolvedEdge{
			edge("cs.a", "cs.b", model.RelSimilarTo),
			edge("cs.b", "cs.a", model.RelSimilarTo),
		},
		nil,
	)
	assert.True(t, res.Clean())
	assert.Len(t, res.Accepted, 2)
}

func TestValidate_PartialAcceptance(t *testing.T) {
	v := newTestValidator()
	nodes := []model.CanonicalConcept{
		node("cs.a", 3), node("cs.b", 3), node("cs.c", 3),
	}
	edges := []model.ResolvedEdge{
		edge("cs.a", "cs.b", model.RelRequires),
		edge("cs.b", "cs.c", model.RelRequires),
		edge("cs.c", "cs.a", model.RelRequires), // closes a cycle
		edge("cs.a", "cs.missing", model.RelRelatedTo),
	}
	res := v.Validate(nodes, edges, nil)

	assert.Len(t, res.Nodes, 3)
	assert.Len(t, res.Accepted, 2)
	assert.Len(t, res.RejectedEdges, 2)
	assert.False(t, res.Clean())
}

func TestValidate_TenEdgesTwoBad(t *testing.T) {
	v := newTestValidator()
	ids := []string{"cs.a", "cs.b", "cs.c", "cs.d", "cs.e", "cs.f", "cs.g", "cs.h", "cs.i"}
	nodes := make([]model.CanonicalConcept, len(ids))
	for i, id := range ids {
		nodes[i] = node(id, 3)
	}

	// A chain a->b->...->i (8 good edges), one cycle-closer and one dangler.
	var edges []model.ResolvedEdge
	for i := 0; i < len(ids)-1; i++ {
		edges = append(edges, edge(ids[i], ids[i+1], model.RelRequires))
	}
	edges = append(edges,
		edge("cs.i", "cs.a", model.RelRequires),
		edge("cs.a", "cs.unknown", model.RelRelatedTo),
	)
	require.Len(t, edges, 10)

	res := v.Validate(nodes, edges, nil)
	assert.Len(t, res.Accepted, 8)
	assert.Len(t, res.RejectedEdges, 2)
	assert.False(t, res.Clean())
}

func TestValidate_EdgeWeightClamp(t *testing.T) {
	v := newTestValidator()
	e := model.ResolvedEdge{SourceID: "cs.a", TargetID: "cs.b", Type: model.RelRelatedTo, Weight: 1.4, Confidence: -0.1}
	res := v.Validate(
		[]model.CanonicalConcept{node("cs.a", 3), node("cs.b", 3)},
		[]model.ResolvedEdge{e},
		nil,
	)

	assert.Len(t, res.Accepted, 1)
	assert.Equal(t, 1.0, res.Accepted[0].Weight)
	assert.Equal(t, 0.0, res.Accepted[0].Confidence)
	assert.Len(t, res.RepairedEdges, 2)
}
