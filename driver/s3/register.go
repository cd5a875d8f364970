package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gobeaver/resfs"
)

func init() {
	resfs.RegisterDriver("s3", createS3Device)
}

// createS3Device builds a device for a mount table entry. The bucket comes
// from the "bucket" option or RESFS_S3_BUCKET; Root is used as key prefix.
func createS3Device(spec resfs.MountSpec, cfg *resfs.Config) (resfs.Device, error) {
	if cfg == nil {
		cfg = &resfs.Config{}
	}

	bucket := cfg.S3Bucket
	if b := spec.Options["bucket"]; b != "" {
		bucket = b
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 driver requires a bucket")
	}

	// Create S3 client
	s3Client, err := createS3Client(cfg, spec.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	// Create S3 device with options
	opts := []DeviceOption{}
	if spec.Root != "" {
		opts = append(opts, WithPrefix(spec.Root))
	}

	return New(s3Client, bucket, opts...), nil
}

// createS3Client creates an S3 client from config
func createS3Client(cfg *resfs.Config, overrides map[string]string) (*s3.Client, error) {
	region := cfg.S3Region
	if r := overrides["region"]; r != "" {
		region = r
	}
	endpoint := cfg.S3Endpoint
	if e := overrides["endpoint"]; e != "" {
		endpoint = e
	}

	// Create AWS config
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}

	// Override with explicit credentials if provided
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)
	}

	// Create S3 client options
	s3Options := func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.S3ForcePathStyle || overrides["path_style"] == "true" {
			o.UsePathStyle = true
		}
	}

	return s3.NewFromConfig(awsCfg, s3Options), nil
}
