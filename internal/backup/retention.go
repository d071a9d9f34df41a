package backup

import (
	"context"
	"fmt"
	"slices"
)

// CleanupOldBackups deletes the oldest backups beyond MaxBackups, oldest
// first. Backups named in protect are never deleted and do not count toward
// the excess. A failed deletion is logged and the remaining ones still run.
// It returns the ids that were removed.
func (m *Manager) CleanupOldBackups(ctx context.Context, protect ...string) ([]string, error) {
	backups, err := m.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) <= m.opts.MaxBackups {
		return nil, nil
	}

	excess := len(backups) - m.opts.MaxBackups
	var removed []string
	// backups is newest first; walk from the tail.
	for i := len(backups) - 1; i >= 0 && excess > 0; i-- {
		id := backups[i].ID
		if slices.Contains(protect, id) {
			continue
		}
		excess--
		n, err := m.DeleteBackup(ctx, id)
		if err != nil {
			m.log.Warn().Err(err).Str("backup_id", id).Msg("failed to delete old backup")
			continue
		}
		m.log.Info().Str("backup_id", id).Int("objects", n).Msg("pruned old backup")
		removed = append(removed, id)
	}
	return removed, nil
}

// DeleteBackup removes every object under the backup's namespace, its
// metadata included, and returns how many objects were deleted.
func (m *Manager) DeleteBackup(ctx context.Context, id string) (int, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}
	objects, err := m.store.List(ctx, m.backupPrefix(id))
	if err != nil {
		return 0, fmt.Errorf("list backup %s: %w", id, err)
	}
	if len(objects) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	for i, obj := range objects {
		if err := m.store.Delete(ctx, obj.Key); err != nil {
			return i, fmt.Errorf("delete backup %s: %s: %w", id, obj.Key, err)
		}
	}
	return len(objects), nil
}
