// Package s3 implements the object-storage port for AWS S3.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alfrecampione/golden-review-backend/config"
	"github.com/alfrecampione/golden-review-backend/internal/storage"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// Client implements the ObjectStorage interface for AWS S3.
type Client struct {
	s3Client *awss3.Client
	bucket   string
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewClient creates a new S3 storage client bound to the configured bucket.
func NewClient(cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is not configured")
	}

	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	return &Client{
		s3Client: awss3.NewFromConfig(awsCfg),
		bucket:   cfg.Bucket,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Put stores an object in S3.
func (c *Client) Put(ctx context.Context, key string, reader io.Reader, metadata storage.ObjectMetadata) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordDuration("storage.s3.put", time.Since(start).Seconds())
	}()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, reader); err != nil {
		c.logger.Error(ctx, "failed to read content", err, observability.Fields{
			"bucket": c.bucket,
			"key":    key,
		})
		return fmt.Errorf("failed to read content: %w", err)
	}

	input := &awss3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if metadata.ContentType != "" {
		input.ContentType = aws.String(metadata.ContentType)
	}
	if len(metadata.UserMetadata) > 0 {
		input.Metadata = metadata.UserMetadata
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		c.metrics.RecordError("storage.s3.put", "put_failed")
		c.logger.Error(ctx, "failed to put object", err, observability.Fields{
			"bucket": c.bucket,
			"key":    key,
		})
		return fmt.Errorf("failed to put object: %w", err)
	}

	c.metrics.RecordSuccess("storage.s3.put")
	c.metrics.RecordFileSize("object", int64(buf.Len()))
	c.logger.Debug(ctx, "object stored", observability.Fields{
		"bucket": c.bucket,
		"key":    key,
		"size":   buf.Len(),
	})

	return nil
}

// Get retrieves an object from S3.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := c.s3Client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrObjectNotFound
		}
		c.logger.Error(ctx, "failed to get object", err, observability.Fields{
			"bucket": c.bucket,
			"key":    key,
		})
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return result.Body, nil
}

// List returns the objects under the given key prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []storage.ObjectInfo
	paginator := awss3.NewListObjectsV2Paginator(c.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.metrics.RecordError("storage.s3.list", "list_failed")
			c.logger.Error(ctx, "failed to list objects", err, observability.Fields{
				"bucket": c.bucket,
				"prefix": prefix,
			})
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, storage.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}

	return objects, nil
}

// Exists checks if an object exists in S3.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// buildAWSConfig builds the AWS configuration from the storage config.
func buildAWSConfig(storageConfig *config.StorageConfig) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if storageConfig.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(storageConfig.Region))
	}

	// Use static credentials if provided
	if storageConfig.AccessKeyID != "" && storageConfig.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				storageConfig.AccessKeyID,
				storageConfig.SecretAccessKey,
				"",
			),
		))
	}

	optFns = append(optFns, awsconfig.WithRetryMaxAttempts(storageConfig.MaxRetries))
	optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{
		Timeout: storageConfig.Timeout,
	}))

	return awsconfig.LoadDefaultConfig(context.Background(), optFns...)
}

// isNotFoundError checks if an error is a not found error.
func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nse *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nse)
}
