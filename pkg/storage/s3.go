package storage

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/imgsync/imgsync/pkg/errors"
)

// S3 serves images from a bucket, one key prefix per vendor directory.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 store using the default credential chain.
func NewS3(ctx context.Context, bucket, prefix, region string) (*S3, error) {
	slog.Info("s3_client_init", "bucket", bucket, "prefix", prefix, "region", region)

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &S3{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *S3) dirKey(dir string) string {
	return strings.TrimPrefix(path.Join(s.prefix, dir)+"/", "/")
}

// List lists the objects directly under the vendor prefix.
func (s *S3) List(ctx context.Context, dir string) ([]string, error) {
	prefix := s.dirKey(dir)
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("s3_list_failed", "prefix", prefix, "error", err)
			return nil, errors.Wrap(err, "failed to list objects")
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				names = append(names, strings.TrimPrefix(*obj.Key, prefix))
			}
		}
	}

	slog.Debug("s3_list_complete", "prefix", prefix, "object_count", len(names))
	return filterImages(names), nil
}

func (s *S3) Read(ctx context.Context, dir, name string) ([]byte, error) {
	key := s.dirKey(dir) + name
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("s3_get_object_failed", "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download object")
	}
	return data, nil
}
