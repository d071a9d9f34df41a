package backup

import "context"

// SelectEmergencyCandidate returns the newest backup that is not a
// pre-rollback snapshot and captured at least one file. backups must be
// ordered newest first, as ListBackups returns them.
func SelectEmergencyCandidate(backups []Metadata) (*Metadata, bool) {
	for i := range backups {
		if backups[i].Type == TypePreRollback || backups[i].FileCount <= 0 {
			continue
		}
		return &backups[i], true
	}
	return nil, false
}

// EmergencyRollback rolls back to the most recent usable backup.
func (m *Manager) EmergencyRollback(ctx context.Context) (*Metadata, error) {
	backups, err := m.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	candidate, ok := SelectEmergencyCandidate(backups)
	if !ok {
		return nil, ErrNoSuitableBackup
	}
	m.log.Warn().Str("backup_id", candidate.ID).Str("type", candidate.Type).Msg("emergency rollback selected backup")
	return m.Rollback(ctx, candidate.ID)
}
