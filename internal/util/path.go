package util

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const backupIDPrefix = "backup-"

// BuildBackupID formats a backup id from its creation time: the ISO 8601
// timestamp with ':' and '.' replaced by '-', e.g. backup-2024-01-01T10-00-00-000Z.
func BuildBackupID(when time.Time) string {
	stamp := when.UTC().Format("2006-01-02T15:04:05.000Z")
	return backupIDPrefix + strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}

// ParseBackupID recovers the creation time encoded by BuildBackupID.
func ParseBackupID(id string) (time.Time, error) {
	if !strings.HasPrefix(id, backupIDPrefix) {
		return time.Time{}, fmt.Errorf("invalid backup id %q", id)
	}
	stamp := strings.TrimPrefix(id, backupIDPrefix)
	i := strings.LastIndex(stamp, "-")
	if i < 0 {
		return time.Time{}, fmt.Errorf("invalid backup id %q", id)
	}
	t, err := time.Parse("2006-01-02T15-04-05.000Z", stamp[:i]+"."+stamp[i+1:])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid backup id %q: %w", id, err)
	}
	return t.UTC(), nil
}

// BuildBackupPrefix returns the namespace of a backup, always ending in "/".
func BuildBackupPrefix(root, id string) string {
	return path.Join(strings.Trim(root, "/"), id) + "/"
}

// BackupIDFromPrefix extracts the id from a "<root>/<id>/" listing prefix.
func BackupIDFromPrefix(root, prefix string) string {
	return strings.Trim(strings.TrimPrefix(prefix, root), "/")
}
