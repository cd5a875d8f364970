package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/gobeaver/resfs"
	"google.golang.org/api/option"
)

func init() {
	resfs.RegisterDriver("gcs", func(spec resfs.MountSpec, cfg *resfs.Config) (resfs.Device, error) {
		bucket := cfg.GCSBucket
		if b, ok := spec.Options["bucket"]; ok {
			bucket = b
		}
		if bucket == "" {
			return nil, fmt.Errorf("gcs: bucket is required")
		}

		// Without a credentials file the client uses GOOGLE_APPLICATION_CREDENTIALS
		// or the default credentials
		var opts []option.ClientOption
		credentials := cfg.GCSCredentialsFile
		if c, ok := spec.Options["credentials_file"]; ok {
			credentials = c
		}
		if credentials != "" {
			opts = append(opts, option.WithCredentialsFile(credentials))
		}

		client, err := storage.NewClient(context.Background(), opts...)
		if err != nil {
			return nil, err
		}
		return New(client, bucket, WithPrefix(spec.Root)), nil
	})
}
