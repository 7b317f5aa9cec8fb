package snapshot

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/model"
)

// Store persists at most one attempt snapshot per exam in durable
// client storage. Implementations must treat malformed or missing
// entries as absent rather than failing, and must never return a
// snapshot whose exam id does not match the requested one.
type Store interface {
	// Save persists the snapshot under the exam's key, replacing any
	// previous entry.
	Save(ctx context.Context, examID uuid.UUID, snap *model.Snapshot) error
	// Load returns the stored snapshot for the exam, or (nil, nil) on a
	// miss. Corrupt entries are misses.
	Load(ctx context.Context, examID uuid.UUID) (*model.Snapshot, error)
	// Clear removes the exam's entry. Clearing a missing entry is not
	// an error.
	Clear(ctx context.Context, examID uuid.UUID) error
}

// scoped validates that a decoded snapshot belongs to the requested
// exam. Entries written before the exam id was stamped are rejected too.
func scoped(snap *model.Snapshot, examID uuid.UUID) *model.Snapshot {
	if snap == nil || snap.ID == uuid.Nil || snap.ExamID != examID {
		return nil
	}
	return snap
}
