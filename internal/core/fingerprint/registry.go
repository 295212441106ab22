// Package fingerprint implements the content-hash idempotency gate in front
// of the ingestion pipeline.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/kgerr"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

// Outcome of a Register call.
type Outcome string

const (
	OutcomeNew     Outcome = "NEW"
	OutcomeSkipped Outcome = "SKIPPED"
)

// Registry is the sole idempotency gate; everything downstream of it assumes
// the gate has already been passed.
type Registry struct {
	store     Store
	retention time.Duration
	log       *logger.Logger
}

func NewRegistry(store Store, retentionDays int, log *logger.Logger) *Registry {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Registry{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.With("component", "fingerprint"),
	}
}

// Checksum computes the content hash of a batch over its canonical JSON:
// candidates and relationships sorted, so identical payloads hash equal
// regardless of input ordering.
func Checksum(batch model.Batch) string {
	concepts := make([]model.ConceptCandidate, len(batch.Concepts))
	copy(concepts, batch.Concepts)
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].LocalID < concepts[j].LocalID })

	rels := make([]model.RelationshipCandidate, len(batch.Relationships))
	copy(rels, batch.Relationships)
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].SourceLocalID != rels[j].SourceLocalID {
			return rels[i].SourceLocalID < rels[j].SourceLocalID
		}
		if rels[i].TargetLocalID != rels[j].TargetLocalID {
			return rels[i].TargetLocalID < rels[j].TargetLocalID
		}
		return rels[i].Type < rels[j].Type
	})

	canonical := struct {
		DocumentID    string                        `json:"document_id"`
		Domain        string                        `json:"domain"`
		Concepts      []model.ConceptCandidate      `json:"concepts"`
		Relationships []model.RelationshipCandidate `json:"relationships"`
	}{batch.DocumentID, batch.Domain, concepts, rels}

	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Register looks up checksum and decides whether the batch should run.
// Returns SKIPPED iff the checksum exists with status PROCESSED or PARTIAL
// and force is false; otherwise records a pending NEW entry and returns NEW.
func (r *Registry) Register(ctx context.Context, checksum string, force bool) (Outcome, error) {
	existing, err := r.store.Get(ctx, checksum)
	if err != nil {
		return "", kgerr.Retryable(err, "fingerprint lookup")
	}

	if existing != nil && !force &&
		(existing.Status == model.StatusProcessed || existing.Status == model.StatusPartial) {
		r.log.Info("ingestion unit already seen, skipping",
			"checksum", checksum, "status", existing.Status)
		return OutcomeSkipped, nil
	}

	fp := model.IngestionFingerprint{
		Checksum: checksum,
		Status:   model.StatusNew,
		LastSeen: time.Now().UTC(),
	}
	if err := r.store.Put(ctx, fp, r.retention); err != nil {
		return "", kgerr.Retryable(err, "fingerprint record pending")
	}
	return OutcomeNew, nil
}

// MarkProcessed records full success for checksum.
func (r *Registry) MarkProcessed(ctx context.Context, checksum string) error {
	return r.mark(ctx, checksum, model.StatusProcessed)
}

// MarkPartial records that the batch landed with per-item rejections, so a
// corrected re-run with force can repair it.
func (r *Registry) MarkPartial(ctx context.Context, checksum string) error {
	return r.mark(ctx, checksum, model.StatusPartial)
}

func (r *Registry) mark(ctx context.Context, checksum string, status model.FingerprintStatus) error {
	fp := model.IngestionFingerprint{
		Checksum: checksum,
		Status:   status,
		LastSeen: time.Now().UTC(),
	}
	if err := r.store.Put(ctx, fp, r.retention); err != nil {
		return kgerr.Retryable(err, "fingerprint mark "+string(status))
	}
	return nil
}
