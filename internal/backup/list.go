package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rowjay/sitebak/internal/storage"
	"github.com/rowjay/sitebak/internal/util"
)

// ListBackups reads every backup's metadata, newest first. Backups whose
// metadata is missing or unreadable are skipped with a warning.
func (m *Manager) ListBackups(ctx context.Context) ([]Metadata, error) {
	dirs, err := m.store.ListDirs(ctx, m.opts.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	backups := make([]Metadata, 0, len(dirs))
	for _, dir := range dirs {
		id := util.BackupIDFromPrefix(m.opts.Prefix, dir)
		meta, err := m.GetBackupMetadata(ctx, id)
		if err != nil {
			m.log.Warn().Err(err).Str("backup_id", id).Msg("skipping backup with unreadable metadata")
			continue
		}
		if meta == nil {
			m.log.Warn().Str("backup_id", id).Msg("skipping backup without metadata")
			continue
		}
		if meta.Timestamp.IsZero() {
			if ts, err := util.ParseBackupID(id); err == nil {
				meta.Timestamp = ts
			}
		}
		backups = append(backups, *meta)
	}
	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// GetBackupMetadata returns nil, nil when the backup has no metadata object.
func (m *Manager) GetBackupMetadata(ctx context.Context, id string) (*Metadata, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	var meta Metadata
	if err := m.readJSON(ctx, m.metadataKey(id), &meta); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meta, nil
}

func (m *Manager) mustGet(ctx context.Context, id string) (*Metadata, error) {
	meta, err := m.GetBackupMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	return meta, nil
}

// Objects returns a backup's metadata and every object stored under its
// namespace, the metadata object included, with keys relative to the namespace.
func (m *Manager) Objects(ctx context.Context, id string) (*Metadata, []storage.ObjectInfo, error) {
	meta, err := m.mustGet(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	prefix := m.backupPrefix(id)
	objects, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("list backup %s: %w", id, err)
	}
	for i := range objects {
		objects[i].Key = strings.TrimPrefix(objects[i].Key, prefix)
	}
	return meta, objects, nil
}

// Open reads one object of a backup by its relative key.
func (m *Manager) Open(ctx context.Context, id, rel string) (io.ReadCloser, error) {
	return m.store.Get(ctx, m.backupPrefix(id)+rel)
}
