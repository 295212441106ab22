package model

import "time"

// ConceptCandidate is an unresolved concept proposed by the external
// extractor. It is immutable once handed to the ingestion core; LocalID is
// unique only within its batch.
type ConceptCandidate struct {
	LocalID       string    `json:"local_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Embedding     []float32 `json:"embedding"`
	Tags          []string  `json:"tags,omitempty"`
	Difficulty    float64   `json:"difficulty"`
	Confidence    float64   `json:"confidence"`
	SourceBatchID string    `json:"source_batch_id,omitempty"`
}

// ProvenanceEntry records one contribution to a canonical concept attribute.
// Entries are append-only; the fused value of a scalar field is always
// recomputable as the confidence-weighted average over its entries.
type ProvenanceEntry struct {
	Field         string    `json:"field"`
	Value         any       `json:"value"`
	Confidence    float64   `json:"confidence"`
	SourceBatchID string    `json:"source_batch_id,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// CanonicalConcept is the single authoritative graph node for an idea.
// ConceptID is stable and globally unique once assigned.
type CanonicalConcept struct {
	ConceptID   string            `json:"concept_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Domain      string            `json:"domain,omitempty"`
	Embedding   []float32         `json:"embedding,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Difficulty  float64           `json:"difficulty"`
	Provenance  []ProvenanceEntry `json:"attribute_provenance,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ScalarProvenance returns the provenance entries recorded for field.
func (c CanonicalConcept) ScalarProvenance(field string) []ProvenanceEntry {
	var out []ProvenanceEntry
	for _, p := range c.Provenance {
		if p.Field == field {
			out = append(out, p)
		}
	}
	return out
}

// ConceptCluster is the result of within-batch normalization: a set of
// same-batch candidates collapsed into one representative.
type ConceptCluster struct {
	Members        []ConceptCandidate `json:"members"`
	Representative ConceptCandidate   `json:"representative"`
}

// MergeAction is the outcome of resolving a candidate against the graph.
type MergeAction string

const (
	ActionCreate MergeAction = "CREATE"
	ActionMerge  MergeAction = "MERGE"
)

// MergeDecision is produced per representative candidate per batch.
// TargetID is set only for MERGE.
type MergeDecision struct {
	Candidate ConceptCandidate `json:"candidate"`
	TargetID  string           `json:"target,omitempty"`
	Action    MergeAction      `json:"action"`
	Score     float64          `json:"score"`
}

// Match pairs a retrieved canonical concept with its coarse (stage 1) score.
type Match struct {
	Concept     CanonicalConcept `json:"concept"`
	CoarseScore float64          `json:"coarse_score"`
}
