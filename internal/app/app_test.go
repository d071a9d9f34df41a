package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/sitebak/internal/backup"
	"github.com/rowjay/sitebak/internal/compress"
	"github.com/rowjay/sitebak/internal/config"
	"github.com/rowjay/sitebak/internal/lock"
	"github.com/rowjay/sitebak/internal/metrics"
	"github.com/rowjay/sitebak/internal/notify"
	"github.com/rowjay/sitebak/internal/storage"
)

type recordingNotifier struct {
	events []notify.Event
	fail   int
}

func (r *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	r.events = append(r.events, event)
	if r.fail > 0 {
		r.fail--
		return errors.New("unreachable")
	}
	return nil
}

func newTestApp(t *testing.T) (*App, *recordingNotifier, *storage.Local) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Global: config.GlobalConfig{
			LockFile:         filepath.Join(dir, "sitebak.lock"),
			OperationTimeout: time.Minute,
			Environment:      "staging",
		},
		Storage:       config.StorageConfig{Backend: "local", Bucket: "site", Local: config.LocalStore{Path: filepath.Join(dir, "bucket")}},
		Backup:        config.BackupConfig{Prefix: "backups/", MaxBackups: 5, DeleteBatchSize: 10, DefaultType: backup.TypeManual},
		Export:        config.ExportConfig{Compression: compress.TypeGzip},
		Notifications: config.NotificationsConfig{RetryCount: 1, RetryBackoff: time.Millisecond},
	}
	store := storage.NewLocal(cfg.Storage.Local.Path)
	mgr := backup.New(store, nil, nil, zerolog.Nop(), backup.OptionsFromConfig(cfg))
	rec := &recordingNotifier{}
	return New(cfg, mgr, zerolog.Nop(), rec, metrics.New()), rec, store
}

func seed(t *testing.T, store *storage.Local) {
	t.Helper()
	for _, key := range []string{"index.html", "blog/post.html"} {
		require.NoError(t, store.Put(context.Background(), key, strings.NewReader(key), int64(len(key)), storage.PutOptions{}))
	}
}

func TestBackupNotifiesAndRecords(t *testing.T) {
	a, rec, store := newTestApp(t)
	seed(t, store)

	meta, err := a.Backup(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, backup.TypeManual, meta.Type)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, "backup", ev.Type)
	assert.Equal(t, "success", ev.Status)
	assert.Equal(t, meta.ID, ev.BackupID)
	assert.Equal(t, "staging", ev.Environment)
	assert.Equal(t, "site", ev.Bucket)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Operations.WithLabelValues("backup", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Metrics.BackupFiles))
}

func TestRollbackFailureNotifies(t *testing.T) {
	a, rec, _ := newTestApp(t)
	_, err := a.Rollback(context.Background(), "backup-2000-01-01T00-00-00-000Z")
	require.ErrorIs(t, err, backup.ErrBackupNotFound)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "failed", rec.events[0].Status)
	assert.Contains(t, rec.events[0].Error, "backup not found")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Operations.WithLabelValues("rollback", "failed")))
}

func TestNotificationRetriedPerTarget(t *testing.T) {
	a, rec, store := newTestApp(t)
	seed(t, store)
	rec.fail = 1
	healthy := &recordingNotifier{}
	nc := a.Cfg.Notifications
	a.Notifier = notify.Multi{Targets: []notify.Notifier{healthy, rec}, Attempts: nc.RetryCount + 1, Backoff: nc.RetryBackoff}

	_, err := a.Backup(context.Background(), backup.TypeAuto)
	require.NoError(t, err)
	assert.Len(t, rec.events, 2)
	assert.Len(t, healthy.events, 1)
}

func TestNotificationFailureDoesNotFailOperation(t *testing.T) {
	a, rec, store := newTestApp(t)
	seed(t, store)
	rec.fail = 5

	meta, err := a.Backup(context.Background(), backup.TypeAuto)
	require.NoError(t, err)
	assert.NotNil(t, meta)
	assert.Len(t, rec.events, 1)
}

func TestMutatingOperationsRespectLock(t *testing.T) {
	a, rec, store := newTestApp(t)
	seed(t, store)

	held, err := lock.Acquire(a.Cfg.Global.LockFile)
	require.NoError(t, err)
	defer held.Release()

	_, err = a.Backup(context.Background(), "")
	require.ErrorIs(t, err, lock.ErrLocked)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "failed", rec.events[0].Status)

	// read-only operations do not take the lock
	backups, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestListAndVerifyAndDelete(t *testing.T) {
	a, rec, store := newTestApp(t)
	seed(t, store)
	ctx := context.Background()

	meta, err := a.Backup(ctx, "")
	require.NoError(t, err)

	backups, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.BackupsRetained))

	_, err = a.Verify(ctx, meta.ID)
	require.NoError(t, err)

	n, err := a.Delete(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var types []string
	for _, ev := range rec.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"backup", "verify", "delete"}, types)
}

func TestEmergencyAndExport(t *testing.T) {
	a, _, store := newTestApp(t)
	seed(t, store)
	ctx := context.Background()

	_, err := a.Emergency(ctx)
	require.ErrorIs(t, err, backup.ErrNoSuitableBackup)

	meta, err := a.Backup(ctx, backup.TypePreDeploy)
	require.NoError(t, err)

	restored, err := a.Emergency(ctx)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, restored.ID)

	var buf bytes.Buffer
	res, err := a.Export(ctx, meta.ID, &buf, a.ExportOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Files)
	assert.Positive(t, buf.Len())
}
