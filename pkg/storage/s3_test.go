package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Store_AppliesRegionCredentialsAndEndpoint(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "AK", creds.AccessKeyID)
		assert.Equal(t, "SK", creds.SecretAccessKey)
		return aws.Config{Region: lo.Region}, nil
	}

	var captured s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&captured)
		}
		return &s3.Client{}
	}

	st, err := NewS3Store(context.Background(), "http://127.0.0.1:9000", Credentials{
		AccessKey: "AK", SecretKey: "SK", Region: "eu-west-1",
	})
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NotNil(t, captured.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *captured.BaseEndpoint)
	assert.True(t, captured.UsePathStyle)
}

func TestNewS3Store_LoadConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("boom")
	}
	_, err := NewS3Store(context.Background(), "", Credentials{Region: "us-west-2"})
	require.Error(t, err)
}

func TestCreateBucketInput_LocationConstraint(t *testing.T) {
	in := createBucketInput("b", "us-east-1")
	assert.Nil(t, in.CreateBucketConfiguration)

	in = createBucketInput("b", "us-west-2")
	require.NotNil(t, in.CreateBucketConfiguration)
	assert.Equal(t, types.BucketLocationConstraint("us-west-2"), in.CreateBucketConfiguration.LocationConstraint)
}

func TestTranslateS3Error(t *testing.T) {
	assert.NoError(t, translateS3Error(nil))
	assert.ErrorIs(t, translateS3Error(&types.NotFound{}), ErrObjectNotFound)
	assert.ErrorIs(t, translateS3Error(&types.NoSuchKey{}), ErrObjectNotFound)
	assert.ErrorIs(t, translateS3Error(&types.NoSuchBucket{}), ErrBucketNotFound)
	assert.ErrorIs(t, translateS3Error(&smithy.GenericAPIError{Code: "NotFound"}), ErrObjectNotFound)

	other := errors.New("throttled")
	assert.Equal(t, other, translateS3Error(other))
}
