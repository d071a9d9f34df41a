// Package backup manages point-in-time copies of the live site tree inside the
// same bucket: creation, listing, integrity verification, rollback, retention
// and emergency recovery.
//
// Backups live under <prefix><id>/ mirroring the live keys, plus one metadata
// object per backup. Nothing here coordinates with other writers of the bucket;
// see the lock package for the host-local guard used by the CLI.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/sitebak/internal/cdn"
	"github.com/rowjay/sitebak/internal/config"
	"github.com/rowjay/sitebak/internal/gitstate"
	"github.com/rowjay/sitebak/internal/storage"
	"github.com/rowjay/sitebak/internal/util"
)

type Options struct {
	Bucket            string
	Region            string
	Environment       string
	DistributionID    string
	Prefix            string
	MetadataKey       string
	MaxBackups        int
	DeleteBatchSize   int
	InvalidationPaths []string
}

// OptionsFromConfig maps loaded configuration onto manager options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Bucket:            cfg.Storage.Bucket,
		Region:            cfg.Storage.Region,
		Environment:       cfg.Global.Environment,
		DistributionID:    cfg.CDN.DistributionID,
		Prefix:            cfg.Backup.Prefix,
		MetadataKey:       cfg.Storage.MetadataKey,
		MaxBackups:        cfg.Backup.MaxBackups,
		DeleteBatchSize:   cfg.Backup.DeleteBatchSize,
		InvalidationPaths: cfg.CDN.Paths,
	}
}

type Manager struct {
	store storage.Storage
	cdn   cdn.Invalidator
	git   gitstate.Source
	log   zerolog.Logger
	opts  Options

	now    func() time.Time
	lastTS time.Time
}

// New builds a manager. invalidator and git may be nil; the corresponding
// steps are then skipped.
func New(store storage.Storage, invalidator cdn.Invalidator, git gitstate.Source, log zerolog.Logger, opts Options) *Manager {
	// Object keys never start with "/", so neither may the prefix.
	opts.Prefix = strings.TrimLeft(opts.Prefix, "/")
	if opts.Prefix == "" {
		opts.Prefix = "backups/"
	}
	if !strings.HasSuffix(opts.Prefix, "/") {
		opts.Prefix += "/"
	}
	opts.MetadataKey = strings.TrimLeft(opts.MetadataKey, "/")
	if opts.MetadataKey == "" {
		opts.MetadataKey = "deployment-metadata.json"
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.DeleteBatchSize <= 0 {
		opts.DeleteBatchSize = 100
	}
	if len(opts.InvalidationPaths) == 0 {
		opts.InvalidationPaths = []string{"/*"}
	}
	return &Manager{
		store: store,
		cdn:   invalidator,
		git:   git,
		log:   log,
		opts:  opts,
		now:   time.Now,
	}
}

func (m *Manager) Options() Options { return m.opts }

func (m *Manager) backupPrefix(id string) string {
	return util.BuildBackupPrefix(m.opts.Prefix, id)
}

func (m *Manager) metadataKey(id string) string {
	return m.backupPrefix(id) + m.opts.MetadataKey
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidBackupID, id)
	}
	return nil
}

// isLive reports whether key belongs to the deployed site rather than to this
// tool's bookkeeping.
func (m *Manager) isLive(key string) bool {
	return !strings.HasPrefix(key, m.opts.Prefix) && key != m.opts.MetadataKey
}

func (m *Manager) listLiveObjects(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := m.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list live objects: %w", err)
	}
	live := make([]storage.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if m.isLive(obj.Key) {
			live = append(live, obj)
		}
	}
	return live, nil
}

// listBackupObjects returns the captured objects of a backup, excluding its
// own metadata object.
func (m *Manager) listBackupObjects(ctx context.Context, id string) ([]storage.ObjectInfo, error) {
	prefix := m.backupPrefix(id)
	objects, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list backup %s: %w", id, err)
	}
	metaKey := m.metadataKey(id)
	files := make([]storage.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key != metaKey {
			files = append(files, obj)
		}
	}
	return files, nil
}

func (m *Manager) readJSON(ctx context.Context, key string, v any) error {
	r, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (m *Manager) writeJSON(ctx context.Context, key string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	err = m.store.Put(ctx, key, strings.NewReader(string(payload)), int64(len(payload)), storage.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"sitebak-metadata": "true"},
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// readLiveDeployment returns the live deployment descriptor, or the
// placeholder when there is none or it is not a JSON object.
func (m *Manager) readLiveDeployment(ctx context.Context) (Deployment, error) {
	var d Deployment
	err := m.readJSON(ctx, m.opts.MetadataKey, &d)
	switch {
	case err == nil && d != nil:
		return d, nil
	case err == nil, errors.Is(err, storage.ErrNotFound):
		m.log.Info().Str("key", m.opts.MetadataKey).Msg("no live deployment metadata, recording placeholder")
		return placeholderDeployment(), nil
	case isDecodeErr(err):
		m.log.Warn().Err(err).Msg("live deployment metadata unreadable, recording placeholder")
		return placeholderDeployment(), nil
	default:
		return nil, err
	}
}

func isDecodeErr(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (m *Manager) captureGit(ctx context.Context) *gitstate.Info {
	if m.git == nil {
		return nil
	}
	info, err := m.git.Capture(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("could not capture git state")
		return nil
	}
	return info
}
