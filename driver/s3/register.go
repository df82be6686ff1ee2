package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gobeaver/filegate"
)

func init() {
	filegate.RegisterDriver("s3", createS3FileSystem)
}

// createS3FileSystem maps a logical bucket name to an S3 bucket of the same
// name
func createS3FileSystem(cfg *filegate.Config, bucket string) (filegate.FileSystem, error) {
	s3Client, err := NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return New(s3Client, bucket,
		WithPollInterval(time.Duration(cfg.S3PollInterval)*time.Second),
	), nil
}

// NewClient creates an S3 client from config. Static credentials override
// the default AWS credential chain when both key and secret are set.
func NewClient(ctx context.Context, cfg *filegate.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
	)
	if err != nil {
		return nil, err
	}

	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)
	}

	s3Options := func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3ForcePathStyle {
			o.UsePathStyle = true
		}
	}

	return s3.NewFromConfig(awsCfg, s3Options), nil
}
