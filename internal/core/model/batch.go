package model

import "time"

// Batch is one ingestion unit handed over by the external extractor.
// Domain is an optional hint used only to namespace generated concept ids;
// it never filters retrieval.
type Batch struct {
	DocumentID    string                  `json:"document_id"`
	BatchID       string                  `json:"batch_id"`
	Domain        string                  `json:"domain,omitempty"`
	Concepts      []ConceptCandidate      `json:"concepts"`
	Relationships []RelationshipCandidate `json:"relationships,omitempty"`
}

// FingerprintStatus tracks the lifecycle of an ingestion unit in the
// registry. NEW is recorded before processing begins; PROCESSED requires
// every item to have been accepted, otherwise the terminal status is PARTIAL.
type FingerprintStatus string

const (
	StatusNew       FingerprintStatus = "NEW"
	StatusProcessed FingerprintStatus = "PROCESSED"
	StatusPartial   FingerprintStatus = "PARTIAL"
)

// IngestionFingerprint is the durable record behind the idempotency gate.
type IngestionFingerprint struct {
	Checksum string            `json:"checksum"`
	Status   FingerprintStatus `json:"status"`
	LastSeen time.Time         `json:"last_seen"`
}
