package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Rollback restores the live tree to backup id.
//
// The phases run strictly in order: a pre-rollback backup of the current live
// tree, an integrity check of the target, clearing the live tree, copying the
// backup back, stamping the live deployment metadata and invalidating the CDN.
// Clearing happens before restoring, so readers of the live tree can observe
// an empty or partially restored site while this runs. A failure mid-restore
// leaves the live tree partially restored; the pre-rollback backup is the way
// back.
func (m *Manager) Rollback(ctx context.Context, id string) (*Metadata, error) {
	target, err := m.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	ev := m.log.Info().
		Str("backup_id", id).
		Str("type", target.Type).
		Str("age", humanize.RelTime(target.Timestamp, m.now(), "ago", "from now")).
		Int("files", target.FileCount).
		Str("size", humanize.Bytes(uint64(target.TotalSize)))
	if target.Git != nil && target.Git.Commit != "" {
		ev = ev.Str("commit", target.Git.ShortCommit)
	}
	ev.Msg("rolling back")

	safety, err := m.createBackup(ctx, TypePreRollback, id)
	if err != nil {
		return nil, fmt.Errorf("pre-rollback backup: %w", err)
	}
	if safety != nil {
		m.log.Info().Str("backup_id", safety.ID).Msg("pre-rollback backup created")
	}

	if err := m.VerifyIntegrity(ctx, id, target); err != nil {
		return nil, err
	}

	files, err := m.listBackupObjects(ctx, id)
	if err != nil {
		return nil, err
	}

	cleared, err := m.clearLiveTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear live tree: %w", err)
	}
	m.log.Info().Int("objects", cleared).Msg("live tree cleared")

	prefix := m.backupPrefix(id)
	for i, obj := range files {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if err := m.store.Copy(ctx, obj.Key, rel); err != nil {
			return nil, fmt.Errorf("restore %s (%d/%d): %w", rel, i+1, len(files), err)
		}
		m.log.Debug().Str("key", rel).Int("n", i+1).Int("of", len(files)).Msg("restored")
	}

	if err := m.writeLiveDeployment(ctx, target); err != nil {
		return nil, err
	}
	m.invalidate(ctx)

	m.log.Info().Str("backup_id", id).Int("files", len(files)).Msg("rollback complete")
	return target, nil
}

// clearLiveTree deletes every live object. Deletes run concurrently within a
// batch and batches run one after another.
func (m *Manager) clearLiveTree(ctx context.Context) (int, error) {
	live, err := m.listLiveObjects(ctx)
	if err != nil {
		return 0, err
	}
	size := m.opts.DeleteBatchSize
	for start := 0; start < len(live); start += size {
		end := min(start+size, len(live))
		g, gctx := errgroup.WithContext(ctx)
		for _, obj := range live[start:end] {
			key := obj.Key
			g.Go(func() error {
				return m.store.Delete(gctx, key)
			})
		}
		if err := g.Wait(); err != nil {
			return start, err
		}
	}
	return len(live), nil
}

func (m *Manager) writeLiveDeployment(ctx context.Context, target *Metadata) error {
	doc := make(map[string]any, len(target.Deployment)+1)
	for k, v := range target.Deployment {
		doc[k] = v
	}
	doc["restoredFrom"] = RestoredFrom{
		BackupID:        target.ID,
		BackupTimestamp: target.Timestamp,
		RestoredAt:      m.now().UTC(),
	}
	if err := m.writeJSON(ctx, m.opts.MetadataKey, doc); err != nil {
		return fmt.Errorf("update live deployment metadata: %w", err)
	}
	return nil
}

func (m *Manager) invalidate(ctx context.Context) {
	if m.opts.DistributionID == "" || m.cdn == nil {
		m.log.Info().Msg("no distribution configured, skipping cache invalidation")
		return
	}
	ref, err := m.cdn.Invalidate(ctx, m.opts.DistributionID, m.opts.InvalidationPaths)
	if err != nil {
		m.log.Warn().Err(err).Str("distribution", m.opts.DistributionID).Msg("cache invalidation failed")
		return
	}
	m.log.Info().Str("distribution", m.opts.DistributionID).Str("invalidation", ref).Msg("cache invalidation requested")
}

