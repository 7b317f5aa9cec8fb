package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/config"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rs/zerolog"
)

// FileStore keeps one JSON file per exam under a local directory. It is
// the default backend: the moral equivalent of the browser's
// localStorage entry.
type FileStore struct {
	dir string
	log zerolog.Logger
}

// NewFileStore creates the snapshot directory if needed.
func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{
		dir: dir,
		log: log.With().Str("component", "snapshot_file").Logger(),
	}, nil
}

func (s *FileStore) path(examID uuid.UUID) string {
	return filepath.Join(s.dir, config.StorageKey.AttemptSnapshot(examID.String())+".json")
}

// Save writes the snapshot atomically (write temp file, then rename).
func (s *FileStore) Save(ctx context.Context, examID uuid.UUID, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	stamped := *snap
	stamped.ExamID = examID

	raw, err := json.Marshal(&stamped)
	if err != nil {
		return err
	}

	tmp := s.path(examID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(examID))
}

// Load reads the exam's snapshot. Missing, unreadable or corrupt files
// are misses; corrupt files are removed so they do not linger.
func (s *FileStore) Load(ctx context.Context, examID uuid.UUID) (*model.Snapshot, error) {
	raw, err := os.ReadFile(s.path(examID))
	if err != nil {
		return nil, nil
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Discarding corrupt snapshot")
		_ = os.Remove(s.path(examID))
		return nil, nil
	}
	return scoped(&snap, examID), nil
}

// Clear removes the exam's snapshot file.
func (s *FileStore) Clear(ctx context.Context, examID uuid.UUID) error {
	if err := os.Remove(s.path(examID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
