package util

import (
	"testing"
	"time"
)

func TestBuildBackupID(t *testing.T) {
	when := time.Date(2024, 1, 1, 10, 5, 9, 123_000_000, time.UTC)
	id := BuildBackupID(when)
	if id != "backup-2024-01-01T10-05-09-123Z" {
		t.Fatalf("unexpected id: %s", id)
	}
	parsed, err := ParseBackupID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.Equal(when) {
		t.Fatalf("unexpected time: %s", parsed)
	}
}

func TestBuildBackupIDOrdering(t *testing.T) {
	a := BuildBackupID(time.Date(2024, 1, 1, 9, 59, 59, 999_000_000, time.UTC))
	b := BuildBackupID(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	if !(a < b) {
		t.Fatalf("expected %s < %s", a, b)
	}
}

func TestParseBackupIDInvalid(t *testing.T) {
	for _, id := range []string{"", "snapshot-1", "backup-yesterday"} {
		if _, err := ParseBackupID(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestBuildBackupPrefix(t *testing.T) {
	prefix := BuildBackupPrefix("backups/", "backup-x")
	if prefix != "backups/backup-x/" {
		t.Fatalf("unexpected prefix: %s", prefix)
	}
	if id := BackupIDFromPrefix("backups/", prefix); id != "backup-x" {
		t.Fatalf("unexpected id: %s", id)
	}
}
