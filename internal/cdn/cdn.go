// Package cdn triggers cache invalidations after the live tree changes.
package cdn

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/google/uuid"
)

// Invalidator purges cached paths on a distribution and returns the
// invalidation id. Callers do not wait for completion.
type Invalidator interface {
	Invalidate(ctx context.Context, distributionID string, paths []string) (string, error)
}

type createInvalidationAPI interface {
	CreateInvalidationWithContext(ctx aws.Context, input *cloudfront.CreateInvalidationInput, opts ...request.Option) (*cloudfront.CreateInvalidationOutput, error)
}

type CloudFront struct {
	api createInvalidationAPI
}

func NewCloudFront(sess *session.Session) *CloudFront {
	return &CloudFront{api: cloudfront.New(sess)}
}

func (c *CloudFront) Invalidate(ctx context.Context, distributionID string, paths []string) (string, error) {
	if distributionID == "" {
		return "", fmt.Errorf("distribution id is required")
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("at least one path is required")
	}
	out, err := c.api.CreateInvalidationWithContext(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &cloudfront.InvalidationBatch{
			CallerReference: aws.String("sitebak-" + uuid.NewString()),
			Paths: &cloudfront.Paths{
				Quantity: aws.Int64(int64(len(paths))),
				Items:    aws.StringSlice(paths),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create invalidation on %s: %w", distributionID, err)
	}
	if out.Invalidation == nil {
		return "", nil
	}
	return aws.StringValue(out.Invalidation.Id), nil
}
