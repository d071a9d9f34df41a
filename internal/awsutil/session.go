// Package awsutil builds the aws-sdk-go session shared by the CloudFront and
// SNS clients.
package awsutil

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/rowjay/sitebak/internal/config"
)

// NewSession uses the storage credentials when both keys are set and falls
// back to the SDK's default chain otherwise.
func NewSession(cfg config.StorageConfig) (*session.Session, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.SessionToken))
	}
	return session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
}
