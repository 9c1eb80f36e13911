package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/s3fs-fuse/docbridge/internal/credentials"
)

// ObjectInfo is the result of a HEAD request
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Client represents an S3 client
type Client struct {
	bucket   string
	region   string
	endpoint string
	creds    *credentials.Credentials
	s3Client *s3.Client
}

// NewClientWithEndpoint creates a new S3 client with custom endpoint
func NewClientWithEndpoint(bucket, region, endpoint string, creds *credentials.Credentials) *Client {
	client := &Client{
		bucket:   bucket,
		region:   region,
		endpoint: endpoint,
		creds:    creds,
	}

	// Initialize AWS SDK client
	if creds != nil && creds.IsValid() {
		cfgOptions := []func(*config.LoadOptions) error{
			config.WithRegion(region),
			config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
				creds.AccessKeyID,
				creds.SecretAccessKey,
				creds.SessionToken,
			)),
		}

		cfg, err := config.LoadDefaultConfig(context.Background(), cfgOptions...)
		if err == nil {
			s3Options := []func(*s3.Options){}
			if endpoint != "" {
				s3Options = append(s3Options, func(o *s3.Options) {
					o.BaseEndpoint = aws.String(endpoint)
					o.UsePathStyle = true // Required for LocalStack
				})
			}
			client.s3Client = s3.NewFromConfig(cfg, s3Options...)
		}
	}

	return client
}

// ListObjects lists all object keys with the given prefix, following
// continuation tokens.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if c.s3Client == nil {
		return nil, fmt.Errorf("S3 client not initialized")
	}

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	return keys, nil
}

// GetObject retrieves an object from S3
func (c *Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	if c.s3Client == nil {
		return nil, fmt.Errorf("S3 client not initialized")
	}

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", notFound(err))
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return data, nil
}

// PutObjectWithMetadata uploads an object to S3 with metadata. A
// "content-type" entry becomes the object's Content-Type header.
func (c *Client) PutObjectWithMetadata(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if c.s3Client == nil {
		return fmt.Errorf("S3 client not initialized")
	}

	contentType, userMetadata := splitMetadata(metadata)
	input := &s3.PutObjectInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: userMetadata,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := c.s3Client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}

	return nil
}

// HeadObject retrieves object size, content type and metadata without
// downloading the body
func (c *Client) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	if c.s3Client == nil {
		return nil, fmt.Errorf("S3 client not initialized")
	}

	result, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to head object: %w", notFound(err))
	}

	info := &ObjectInfo{
		Key:      key,
		Metadata: make(map[string]string, len(result.Metadata)),
	}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	if result.ContentType != nil {
		info.ContentType = *result.ContentType
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}
	for k, v := range result.Metadata {
		info.Metadata[k] = v
	}

	return info, nil
}

// CreateBucket creates the client's bucket. A bucket we already own is
// not an error.
func (c *Client) CreateBucket(ctx context.Context) error {
	if c.s3Client == nil {
		return fmt.Errorf("S3 client not initialized")
	}

	_, err := c.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// splitMetadata separates the content type from user metadata.
// AWS SDK expects metadata keys WITHOUT "x-amz-meta-" prefix; it adds the
// prefix itself.
func splitMetadata(metadata map[string]string) (string, map[string]string) {
	const metaPrefix = "x-amz-meta-"

	var contentType string
	clean := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if strings.EqualFold(k, "content-type") {
			contentType = v
			continue
		}
		clean[strings.TrimPrefix(k, metaPrefix)] = v
	}
	return contentType, clean
}

// notFound maps S3 "no such key" responses onto os.ErrNotExist.
func notFound(err error) error {
	var noSuchKey *types.NoSuchKey
	var missing *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &missing) {
		return fmt.Errorf("%w: %v", os.ErrNotExist, err)
	}
	return err
}
