package backup

import (
	"time"

	"github.com/rowjay/sitebak/internal/gitstate"
)

// Backup types. The field is an open string; these are the values the tool itself writes.
const (
	TypeManual      = "manual"
	TypeAuto        = "auto"
	TypePreDeploy   = "pre-deploy"
	TypePreRollback = "pre-rollback"
)

// Metadata is the descriptor stored at backups/<id>/deployment-metadata.json.
// It is written once and never updated.
type Metadata struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        string         `json:"type"`
	Environment string         `json:"environment"`
	FileCount   int            `json:"fileCount"`
	TotalSize   int64          `json:"totalSize"`
	Git         *gitstate.Info `json:"git,omitempty"`
	Deployment  Deployment     `json:"deployment"`
	S3          S3Location     `json:"s3"`
	CloudFront  CloudFrontInfo `json:"cloudfront"`
	Integrity   string         `json:"integrity"`
}

type S3Location struct {
	BucketName   string `json:"bucketName"`
	BackupPrefix string `json:"backupPrefix"`
	Region       string `json:"region"`
}

type CloudFrontInfo struct {
	DistributionID string `json:"distributionId,omitempty"`
}

// Deployment is whatever the live deployment-metadata.json held when the
// backup was taken. The deploy pipeline owns its shape.
type Deployment map[string]any

// RestoredFrom is stamped into the live deployment metadata by a rollback.
type RestoredFrom struct {
	BackupID        string    `json:"backupId"`
	BackupTimestamp time.Time `json:"backupTimestamp"`
	RestoredAt      time.Time `json:"restoredAt"`
}

func placeholderDeployment() Deployment {
	return Deployment{"status": "unknown", "note": "no deployment metadata found"}
}
