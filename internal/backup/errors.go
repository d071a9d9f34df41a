package backup

import (
	"errors"
	"fmt"
)

var (
	ErrBackupNotFound   = errors.New("backup not found")
	ErrNoSuitableBackup = errors.New("no suitable backup found for emergency rollback")
	ErrIntegrity        = errors.New("integrity check failed")
	ErrInvalidBackupID  = errors.New("invalid backup id")
)

// IntegrityError reports a backup whose stored objects no longer match the
// manifest recorded at creation.
type IntegrityError struct {
	BackupID      string
	Expected      string
	Actual        string
	ExpectedFiles int
	ActualFiles   int
	ExpectedBytes int64
	ActualBytes   int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s for %s: fingerprint %s, recomputed %s (files %d/%d, bytes %d/%d)",
		ErrIntegrity, e.BackupID, short(e.Expected), short(e.Actual),
		e.ActualFiles, e.ExpectedFiles, e.ActualBytes, e.ExpectedBytes)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	if hash == "" {
		return "<none>"
	}
	return hash
}
