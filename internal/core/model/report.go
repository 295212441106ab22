package model

// EdgeFix describes an auto-repair applied to an edge field before acceptance.
type EdgeFix struct {
	Edge  ResolvedEdge `json:"edge"`
	Field string       `json:"field"`
	From  float64      `json:"from"`
	To    float64      `json:"to"`
}

// NodeFix describes an auto-repair applied to a concept field (e.g. a
// difficulty clamp) before acceptance.
type NodeFix struct {
	ConceptID string  `json:"concept_id"`
	Field     string  `json:"field"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`
}

// RejectedEdge carries the per-item reason an edge was excluded.
type RejectedEdge struct {
	Edge   ResolvedEdge `json:"edge"`
	Reason string       `json:"reason"`
}

// RejectedNode carries the per-item reason a concept was excluded.
type RejectedNode struct {
	ConceptID string `json:"concept_id"`
	Reason    string `json:"reason"`
}

// ValidationResult partitions the post-resolution batch into items that can
// be persisted and items excluded with reasons. Nodes holds every concept
// cleared for persistence, including repaired ones.
type ValidationResult struct {
	Nodes         []CanonicalConcept `json:"nodes"`
	Accepted      []ResolvedEdge     `json:"accepted"`
	RepairedNodes []NodeFix          `json:"repaired_nodes,omitempty"`
	RepairedEdges []EdgeFix          `json:"repaired_edges,omitempty"`
	RejectedNodes []RejectedNode     `json:"rejected_nodes,omitempty"`
	RejectedEdges []RejectedEdge     `json:"rejected_edges,omitempty"`
}

// Clean reports whether validation excluded nothing.
func (v ValidationResult) Clean() bool {
	return len(v.RejectedNodes) == 0 && len(v.RejectedEdges) == 0
}

// PersistFailure identifies one record the persister could not promote.
type PersistFailure struct {
	Kind   string `json:"kind"` // "node" or "edge"
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchStatus is the terminal outcome of one ProcessBatch call.
type BatchStatus string

const (
	BatchSkipped   BatchStatus = "skipped"
	BatchProcessed BatchStatus = "processed"
	BatchPartial   BatchStatus = "partial"
)

// PersistReport summarizes what one batch did to the graph.
type PersistReport struct {
	BatchID        string           `json:"batch_id"`
	Status         BatchStatus      `json:"status"`
	NodesWritten   int              `json:"nodes_written"`
	EdgesWritten   int              `json:"edges_written"`
	ConceptsAdded  int              `json:"concepts_added"`
	ConceptsMerged int              `json:"concepts_merged"`
	Failures       []PersistFailure `json:"failures,omitempty"`
	RejectedNodes  []RejectedNode   `json:"rejected_nodes,omitempty"`
	RejectedEdges  []RejectedEdge   `json:"rejected_edges,omitempty"`
}

// BatchEvent is the completion payload published for downstream consumers
// (e.g. learning-path recomputation) once a batch lands.
type BatchEvent struct {
	DocumentID         string `json:"document_id"`
	ConceptsAdded      int    `json:"concepts_added"`
	ConceptsMerged     int    `json:"concepts_merged"`
	TotalConcepts      int    `json:"total_concepts"`
	TotalRelationships int    `json:"total_relationships"`
}
