package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/sitebak/internal/config"
)

func put(t *testing.T, s Storage, key, body string) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), key, strings.NewReader(body), int64(len(body)), PutOptions{}))
}

func TestLocalPutGetStat(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(t.TempDir())
	put(t, s, "css/site.css", "body{}")

	r, err := s.Get(ctx, "css/site.css")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	info, err := s.Stat(ctx, "css/site.css")
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)
	// md5("body{}")
	assert.Equal(t, "aa676972bbd2b68e94ef8e91e81d20be", info.ETag)
}

func TestLocalNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(t.TempDir())

	_, err := s.Get(ctx, "missing.html")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Stat(ctx, "missing.html")
	assert.True(t, errors.Is(err, ErrNotFound))
	err = s.Copy(ctx, "missing.html", "other.html")
	assert.True(t, errors.Is(err, ErrNotFound))

	ok, err := s.Exists(ctx, "missing.html")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalListAndDirs(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(t.TempDir())
	put(t, s, "index.html", "<html>")
	put(t, s, "backups/backup-a/index.html", "<html>")
	put(t, s, "backups/backup-b/index.html", "<html>")
	put(t, s, "backups/backup-b/js/app.js", "1")

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "backups/backup-a/index.html", all[0].Key)

	scoped, err := s.List(ctx, "backups/backup-b/")
	require.NoError(t, err)
	require.Len(t, scoped, 2)

	dirs, err := s.ListDirs(ctx, "backups/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"backups/backup-a/", "backups/backup-b/"}, dirs)

	none, err := s.ListDirs(ctx, "nothing/")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLocalCopyPreservesETag(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(t.TempDir())
	put(t, s, "index.html", "<html>home</html>")
	require.NoError(t, s.Copy(ctx, "index.html", "backups/b1/index.html"))

	src, err := s.Stat(ctx, "index.html")
	require.NoError(t, err)
	dst, err := s.Stat(ctx, "backups/b1/index.html")
	require.NoError(t, err)
	assert.Equal(t, src.ETag, dst.ETag)
	assert.Equal(t, src.Size, dst.Size)
}

func TestLocalDeletePrunesEmptyDirs(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(t.TempDir())
	put(t, s, "backups/b1/deep/a.txt", "a")
	put(t, s, "backups/b2/a.txt", "a")

	require.NoError(t, s.Delete(ctx, "backups/b1/deep/a.txt"))
	dirs, err := s.ListDirs(ctx, "backups/")
	require.NoError(t, err)
	assert.Equal(t, []string{"backups/b2/"}, dirs)

	require.NoError(t, s.Delete(ctx, "backups/b1/deep/a.txt"))
}

func TestFingerprint(t *testing.T) {
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	objects := []ObjectInfo{
		{Key: "backups/b1/z.html", ETag: `"bb"`, Size: 2, Modified: when},
		{Key: "backups/b1/a.html", ETag: "aa", Size: 1, Modified: when},
		{Key: "index.html", ETag: "cc", Size: 3, Modified: when},
	}
	entries := BuildManifest(objects, "backups/b1/")
	require.Len(t, entries, 2)
	assert.Equal(t, "a.html", entries[0].Key)
	assert.Equal(t, "bb", entries[1].ETag)
	assert.Equal(t, int64(3), TotalSize(entries))

	base := Fingerprint(entries)
	assert.Len(t, base, 64)

	reordered := BuildManifest([]ObjectInfo{objects[1], objects[0]}, "backups/b1/")
	assert.Equal(t, base, Fingerprint(reordered))

	mutated := append([]ManifestEntry(nil), entries...)
	mutated[1].ETag = "changed"
	assert.NotEqual(t, base, Fingerprint(mutated))

	assert.NotEqual(t, base, Fingerprint(entries[:1]))
}

func TestFactory(t *testing.T) {
	_, err := New(config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)

	_, err = New(config.StorageConfig{Backend: "local"})
	assert.Error(t, err)

	s, err := New(config.StorageConfig{Backend: "local", Local: config.LocalStore{Path: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	s3, err := New(config.StorageConfig{Backend: "s3", Bucket: "www.example.com", Region: "us-east-1", S3: config.S3Store{Endpoint: "s3.amazonaws.com", UseSSL: true}})
	require.NoError(t, err)
	assert.Equal(t, "s3://www.example.com", s3.Location())
}
