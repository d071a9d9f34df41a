package cdn

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	inputs []*cloudfront.CreateInvalidationInput
	err    error
}

func (f *fakeAPI) CreateInvalidationWithContext(_ aws.Context, input *cloudfront.CreateInvalidationInput, _ ...request.Option) (*cloudfront.CreateInvalidationOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &cloudfront.CreateInvalidationOutput{
		Invalidation: &cloudfront.Invalidation{Id: aws.String("I2J0I21PCUYOIK")},
	}, nil
}

func TestInvalidate(t *testing.T) {
	api := &fakeAPI{}
	cf := &CloudFront{api: api}

	id, err := cf.Invalidate(context.Background(), "E2ABCDEF", []string{"/*"})
	require.NoError(t, err)
	assert.Equal(t, "I2J0I21PCUYOIK", id)

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "E2ABCDEF", aws.StringValue(in.DistributionId))
	assert.Equal(t, int64(1), aws.Int64Value(in.InvalidationBatch.Paths.Quantity))
	assert.Equal(t, []string{"/*"}, aws.StringValueSlice(in.InvalidationBatch.Paths.Items))
	assert.True(t, strings.HasPrefix(aws.StringValue(in.InvalidationBatch.CallerReference), "sitebak-"))
}

func TestInvalidateUniqueCallerReference(t *testing.T) {
	api := &fakeAPI{}
	cf := &CloudFront{api: api}
	for i := 0; i < 2; i++ {
		_, err := cf.Invalidate(context.Background(), "E2ABCDEF", []string{"/*"})
		require.NoError(t, err)
	}
	assert.NotEqual(t,
		aws.StringValue(api.inputs[0].InvalidationBatch.CallerReference),
		aws.StringValue(api.inputs[1].InvalidationBatch.CallerReference))
}

func TestInvalidateErrors(t *testing.T) {
	api := &fakeAPI{err: errors.New("AccessDenied")}
	cf := &CloudFront{api: api}

	_, err := cf.Invalidate(context.Background(), "", []string{"/*"})
	assert.Error(t, err)
	_, err = cf.Invalidate(context.Background(), "E2ABCDEF", nil)
	assert.Error(t, err)
	assert.Empty(t, api.inputs)

	_, err = cf.Invalidate(context.Background(), "E2ABCDEF", []string{"/*"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}
