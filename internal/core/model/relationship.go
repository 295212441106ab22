package model

// RelationshipType classifies an edge between concepts. Ordering-class types
// (prerequisite/sequence edges) are the only ones subject to cycle checking;
// the rest are symmetric and exempt.
type RelationshipType string

const (
	RelRequires  RelationshipType = "REQUIRES"
	RelPrecedes  RelationshipType = "PRECEDES"
	RelSimilarTo RelationshipType = "SIMILAR_TO"
	RelPartOf    RelationshipType = "PART_OF"
	RelRelatedTo RelationshipType = "RELATED_TO"
)

// DefaultOrderingTypes is the default set of acyclicity-enforced types.
// Overridable via the [validation] config section.
func DefaultOrderingTypes() []string {
	return []string{string(RelRequires), string(RelPrecedes)}
}

// RelationshipCandidate is an unresolved edge proposed by the extractor,
// expressed in batch-local concept ids.
type RelationshipCandidate struct {
	SourceLocalID string           `json:"source_local_id"`
	TargetLocalID string           `json:"target_local_id"`
	Type          RelationshipType `json:"type"`
	Weight        float64          `json:"weight"`
	Confidence    float64          `json:"confidence"`
}

// ResolvedEdge is a relationship candidate after endpoint remapping to
// canonical concept ids. Endpoints that could not be remapped keep their
// batch-local id and are rejected by referential-integrity validation.
type ResolvedEdge struct {
	SourceID   string           `json:"source_id"`
	TargetID   string           `json:"target_id"`
	Type       RelationshipType `json:"type"`
	Weight     float64          `json:"weight"`
	Confidence float64          `json:"confidence"`
}
