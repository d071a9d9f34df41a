package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/sitebak/internal/archive"
	"github.com/rowjay/sitebak/internal/backup"
	"github.com/rowjay/sitebak/internal/config"
	"github.com/rowjay/sitebak/internal/lock"
	"github.com/rowjay/sitebak/internal/metrics"
	"github.com/rowjay/sitebak/internal/notify"
)

// App wraps the backup manager with the per-run concerns of the CLI: the
// operation lock, the timeout, notifications and metrics.
type App struct {
	Cfg      *config.Config
	Backups  *backup.Manager
	Log      zerolog.Logger
	Notifier notify.Notifier
	Metrics  *metrics.Recorder
}

func New(cfg *config.Config, backups *backup.Manager, log zerolog.Logger, notifier notify.Notifier, recorder *metrics.Recorder) *App {
	return &App{Cfg: cfg, Backups: backups, Log: log, Notifier: notifier, Metrics: recorder}
}

type operation struct {
	name     string
	message  string
	mutating bool
	notify   bool
}

// run executes fn under the operation's guards. fn returns the id of the
// backup it acted on, used in the notification.
func (a *App) run(ctx context.Context, op operation, fn func(ctx context.Context) (string, error)) error {
	start := time.Now()
	var opErr error
	var backupID string
	defer func() {
		a.finish(op, start, backupID, opErr)
	}()

	if op.mutating {
		guard, err := lock.Acquire(a.Cfg.Global.LockFile)
		if err != nil {
			opErr = err
			return err
		}
		defer guard.Release()
	}

	if a.Cfg.Global.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Cfg.Global.OperationTimeout)
		defer cancel()
	}

	backupID, opErr = fn(ctx)
	return opErr
}

func (a *App) finish(op operation, start time.Time, backupID string, opErr error) {
	if a.Metrics != nil {
		a.Metrics.Observe(op.name, start, opErr)
	}
	if op.notify && a.Notifier != nil {
		a.sendEvent(op, start, backupID, opErr)
	}
	if a.Metrics != nil && a.Cfg.Metrics.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Metrics.Push(ctx, a.Cfg.Metrics.PushgatewayURL, a.Cfg.Metrics.Job, a.Cfg.Global.Environment); err != nil {
			a.Log.Warn().Err(err).Msg("failed to push metrics")
		}
	}
}

func (a *App) sendEvent(op operation, start time.Time, backupID string, opErr error) {
	end := time.Now()
	event := notify.Event{
		Type:        op.name,
		Message:     op.message,
		Status:      statusFromErr(opErr),
		Environment: a.Cfg.Global.Environment,
		Bucket:      a.Cfg.Storage.Bucket,
		BackupID:    backupID,
		StartedAt:   start,
		EndedAt:     end,
		Duration:    end.Sub(start).Round(time.Millisecond).String(),
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if backupID != "" && op.message != "" {
		event.Message = fmt.Sprintf("%s %s", op.message, backupID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.Notifier.Notify(ctx, event); err != nil {
		a.Log.Warn().Err(err).Str("operation", op.name).Msg("failed to send notification")
	}
}

func (a *App) Backup(ctx context.Context, typ string) (*backup.Metadata, error) {
	if typ == "" {
		typ = a.Cfg.Backup.DefaultType
	}
	var meta *backup.Metadata
	err := a.run(ctx, operation{name: "backup", message: typ + " backup", mutating: true, notify: true}, func(ctx context.Context) (string, error) {
		var err error
		meta, err = a.Backups.CreateBackup(ctx, typ)
		if err != nil || meta == nil {
			return "", err
		}
		if a.Metrics != nil {
			a.Metrics.ObserveBackup(meta.FileCount, meta.TotalSize)
		}
		return meta.ID, nil
	})
	return meta, err
}

func (a *App) List(ctx context.Context) ([]backup.Metadata, error) {
	var backups []backup.Metadata
	err := a.run(ctx, operation{name: "list"}, func(ctx context.Context) (string, error) {
		var err error
		backups, err = a.Backups.ListBackups(ctx)
		if err == nil && a.Metrics != nil {
			a.Metrics.BackupsRetained.Set(float64(len(backups)))
		}
		return "", err
	})
	return backups, err
}

func (a *App) Rollback(ctx context.Context, id string) (*backup.Metadata, error) {
	var meta *backup.Metadata
	err := a.run(ctx, operation{name: "rollback", message: "rollback to", mutating: true, notify: true}, func(ctx context.Context) (string, error) {
		var err error
		meta, err = a.Backups.Rollback(ctx, id)
		return id, err
	})
	return meta, err
}

func (a *App) Emergency(ctx context.Context) (*backup.Metadata, error) {
	var meta *backup.Metadata
	err := a.run(ctx, operation{name: "emergency", message: "emergency rollback to", mutating: true, notify: true}, func(ctx context.Context) (string, error) {
		var err error
		meta, err = a.Backups.EmergencyRollback(ctx)
		if meta != nil {
			return meta.ID, err
		}
		return "", err
	})
	return meta, err
}

func (a *App) Delete(ctx context.Context, id string) (int, error) {
	var n int
	err := a.run(ctx, operation{name: "delete", message: "delete", mutating: true, notify: true}, func(ctx context.Context) (string, error) {
		var err error
		n, err = a.Backups.DeleteBackup(ctx, id)
		return id, err
	})
	return n, err
}

func (a *App) Verify(ctx context.Context, id string) (*backup.Metadata, error) {
	var meta *backup.Metadata
	err := a.run(ctx, operation{name: "verify", message: "verify", notify: true}, func(ctx context.Context) (string, error) {
		var err error
		meta, err = a.Backups.Verify(ctx, id)
		return id, err
	})
	return meta, err
}

// Export writes the backup archive to w using the configured export options.
func (a *App) Export(ctx context.Context, id string, w io.Writer, opts archive.Options) (*archive.Result, error) {
	var res *archive.Result
	err := a.run(ctx, operation{name: "export"}, func(ctx context.Context) (string, error) {
		var err error
		res, err = archive.Export(ctx, a.Backups, id, w, opts)
		return id, err
	})
	return res, err
}

// ExportOptions returns the configured export options.
func (a *App) ExportOptions() archive.Options {
	return archive.Options{
		Compression:   a.Cfg.Export.Compression,
		Encrypt:       a.Cfg.Export.Encryption,
		EncryptionKey: a.Cfg.Export.EncryptionKey,
	}
}

func statusFromErr(err error) string {
	if err == nil {
		return "success"
	}
	return "failed"
}
