package backup

import (
	"context"

	"github.com/rowjay/sitebak/internal/storage"
)

// VerifyIntegrity recomputes the manifest fingerprint over what is stored under
// the backup's namespace now and compares it with meta.Integrity. Only keys,
// ETags, sizes and modification times are compared, not object bytes.
func (m *Manager) VerifyIntegrity(ctx context.Context, id string, meta *Metadata) error {
	objects, err := m.listBackupObjects(ctx, id)
	if err != nil {
		return err
	}
	entries := storage.BuildManifest(objects, m.backupPrefix(id))
	actual := storage.Fingerprint(entries)
	size := storage.TotalSize(entries)
	if actual != meta.Integrity || len(entries) != meta.FileCount || size != meta.TotalSize {
		return &IntegrityError{
			BackupID:      id,
			Expected:      meta.Integrity,
			Actual:        actual,
			ExpectedFiles: meta.FileCount,
			ActualFiles:   len(entries),
			ExpectedBytes: meta.TotalSize,
			ActualBytes:   size,
		}
	}
	return nil
}

// Verify loads a backup's metadata and checks its integrity.
func (m *Manager) Verify(ctx context.Context, id string) (*Metadata, error) {
	meta, err := m.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.VerifyIntegrity(ctx, id, meta); err != nil {
		return meta, err
	}
	m.log.Info().Str("backup_id", id).Int("files", meta.FileCount).Str("integrity", short(meta.Integrity)).Msg("integrity verified")
	return meta, nil
}
