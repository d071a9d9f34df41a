package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rowjay/sitebak/internal/storage"
	"github.com/rowjay/sitebak/internal/util"
)

// CreateBackup copies the live tree into a new backup namespace and prunes old
// backups beyond the retention cap. An empty live tree is not an error: it
// returns nil metadata and writes nothing.
//
// Copies are sequential and a failed copy aborts the operation, leaving the
// already-copied objects behind without a metadata object.
func (m *Manager) CreateBackup(ctx context.Context, typ string) (*Metadata, error) {
	return m.createBackup(ctx, typ)
}

func (m *Manager) createBackup(ctx context.Context, typ string, protect ...string) (*Metadata, error) {
	if typ == "" {
		typ = TypeManual
	}
	live, err := m.listLiveObjects(ctx)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		m.log.Warn().Str("type", typ).Msg("live tree is empty, nothing to back up")
		return nil, nil
	}

	when, err := m.nextTimestamp(ctx)
	if err != nil {
		return nil, err
	}
	id := util.BuildBackupID(when)
	prefix := m.backupPrefix(id)
	m.log.Info().Str("backup_id", id).Str("type", typ).Int("files", len(live)).Msg("creating backup")

	for i, obj := range live {
		if err := m.store.Copy(ctx, obj.Key, prefix+obj.Key); err != nil {
			return nil, fmt.Errorf("backup %s: copy %s (%d/%d): %w", id, obj.Key, i+1, len(live), err)
		}
		m.log.Debug().Str("key", obj.Key).Int("n", i+1).Int("of", len(live)).Msg("copied")
	}

	captured, err := m.listBackupObjects(ctx, id)
	if err != nil {
		return nil, err
	}
	entries := storage.BuildManifest(captured, prefix)

	deployment, err := m.readLiveDeployment(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", id, err)
	}

	meta := &Metadata{
		ID:          id,
		Timestamp:   when,
		Type:        typ,
		Environment: m.opts.Environment,
		FileCount:   len(entries),
		TotalSize:   storage.TotalSize(entries),
		Git:         m.captureGit(ctx),
		Deployment:  deployment,
		S3: S3Location{
			BucketName:   m.opts.Bucket,
			BackupPrefix: prefix,
			Region:       m.opts.Region,
		},
		CloudFront: CloudFrontInfo{DistributionID: m.opts.DistributionID},
		Integrity:  storage.Fingerprint(entries),
	}
	if err := m.writeJSON(ctx, m.metadataKey(id), meta); err != nil {
		return nil, fmt.Errorf("backup %s: %w", id, err)
	}
	m.log.Info().
		Str("backup_id", id).
		Str("type", typ).
		Int("files", meta.FileCount).
		Str("size", humanize.Bytes(uint64(meta.TotalSize))).
		Str("integrity", short(meta.Integrity)).
		Msg("backup created")

	if _, err := m.CleanupOldBackups(ctx, append(protect, id)...); err != nil {
		m.log.Warn().Err(err).Msg("retention cleanup failed")
	}
	return meta, nil
}

// nextTimestamp returns a millisecond timestamp later than any id this manager
// has issued and not already taken in the store.
func (m *Manager) nextTimestamp(ctx context.Context) (time.Time, error) {
	when := m.now().UTC().Truncate(time.Millisecond)
	if !when.After(m.lastTS) {
		when = m.lastTS.Add(time.Millisecond)
	}
	for {
		taken, err := m.store.Exists(ctx, m.metadataKey(util.BuildBackupID(when)))
		if err != nil {
			return time.Time{}, fmt.Errorf("check backup id: %w", err)
		}
		if !taken {
			break
		}
		when = when.Add(time.Millisecond)
	}
	m.lastTS = when
	return when, nil
}
