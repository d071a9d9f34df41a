package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ManifestEntry is one line of a manifest: what a listing says about an object,
// not what the object contains.
type ManifestEntry struct {
	Key      string    `json:"key"`
	ETag     string    `json:"etag"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"lastModified"`
}

// BuildManifest turns a listing into manifest entries with keys relative to
// prefix, sorted by key. Objects outside prefix are dropped.
func BuildManifest(objects []ObjectInfo, prefix string) []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, prefix) {
			continue
		}
		entries = append(entries, ManifestEntry{
			Key:      strings.TrimPrefix(obj.Key, prefix),
			ETag:     strings.Trim(obj.ETag, `"`),
			Size:     obj.Size,
			Modified: obj.Modified.UTC(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Fingerprint is the SHA-256 over the sorted (key, etag, size, lastModified)
// tuples. Entries must already be sorted by key.
func Fingerprint(entries []ManifestEntry) string {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\t%s\t%d\t%s\n", e.Key, e.ETag, e.Size, e.Modified.UTC().Format(time.RFC3339Nano))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TotalSize sums entry sizes.
func TotalSize(entries []ManifestEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}
