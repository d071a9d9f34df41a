package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local stores objects as files under BasePath. ETags are the hex MD5 of the
// content, matching what S3 reports for single-part uploads.
type Local struct {
	BasePath string
}

func NewLocal(path string) *Local {
	return &Local{BasePath: path}
}

func (l *Local) path(key string) string {
	return filepath.Join(l.BasePath, filepath.FromSlash(key))
}

func (l *Local) Put(ctx context.Context, key string, reader io.Reader, _ int64, _ PutOptions) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return l.write(key, reader)
}

func (l *Local) write(key string, reader io.Reader) error {
	target := l.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path(key))
	if err != nil {
		return nil, mapOSErr(key, err)
	}
	return f, nil
}

func (l *Local) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return ObjectInfo{}, ctx.Err()
	default:
	}
	path := l.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, mapOSErr(key, err)
	}
	if info.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	etag, err := fileETag(path)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: info.Size(), Modified: info.ModTime().UTC(), ETag: etag}, nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	infos := []ObjectInfo{}
	err := filepath.WalkDir(l.BasePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(l.BasePath, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		stat, statErr := d.Info()
		if statErr != nil {
			return statErr
		}
		etag, tagErr := fileETag(path)
		if tagErr != nil {
			return tagErr
		}
		infos = append(infos, ObjectInfo{Key: key, Size: stat.Size(), Modified: stat.ModTime().UTC(), ETag: etag})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (l *Local) ListDirs(ctx context.Context, prefix string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	entries, err := os.ReadDir(l.path(prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	dirs := []string{}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, prefix+e.Name()+"/")
		}
	}
	return dirs, nil
}

func (l *Local) Copy(ctx context.Context, srcKey, dstKey string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	src, err := os.Open(l.path(srcKey))
	if err != nil {
		return mapOSErr(srcKey, err)
	}
	defer src.Close()
	return l.write(dstKey, src)
}

// Delete removes the object and any directories it leaves empty, so deleted
// prefixes disappear from ListDirs the way they do in S3.
func (l *Local) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	target := l.path(key)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	base := filepath.Clean(l.BasePath)
	for dir := filepath.Dir(target); dir != base && strings.HasPrefix(dir, base); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	info, err := os.Stat(l.path(key))
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) Location() string {
	return "file://" + filepath.ToSlash(l.BasePath)
}

func fileETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func mapOSErr(key string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}
