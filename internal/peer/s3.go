package peer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"dfs-go/internal/dfs"
)

// S3API is the subset of the S3 client used by S3Peer.
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3PeerConfig configures an S3Peer.
type S3PeerConfig struct {
	Client   S3API
	Bucket   string
	Prefix   string        // prepended to every object key
	Capacity int64         // bytes the peer may hold; 0 means unbounded
	Timeout  time.Duration // per call; 0 means 30s
}

// S3Peer stores each blob as the object <prefix><fileID> in a bucket.
// S3 keeps the index, so the peer holds no local state and is safe for
// concurrent use.
type S3Peer struct {
	id       string
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	capacity int64
	timeout  time.Duration
}

// NewS3Peer creates a peer backed by an existing bucket.
func NewS3Peer(id string, cfg S3PeerConfig) (*S3Peer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &S3Peer{
		id:       id,
		client:   cfg.Client,
		uploader: manager.NewUploader(cfg.Client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		capacity: cfg.Capacity,
		timeout:  timeout,
	}, nil
}

// NewS3Client builds an S3 client for region. endpoint selects an S3-compatible
// service (MinIO, Localstack) and switches to path-style addressing. Static
// credentials are used when accessKeyID is set; otherwise the default chain applies.
func NewS3Client(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (p *S3Peer) ID() string {
	return p.id
}

func (p *S3Peer) key(fileID string) string {
	return p.prefix + fileID
}

func (p *S3Peer) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.timeout)
}

// IsHealthy reports whether the bucket is accessible. A bucket that answers
// with an S3 error is unhealthy; transport failures are returned as errors.
func (p *S3Peer) IsHealthy() (bool, error) {
	ctx, cancel := p.callContext()
	defer cancel()

	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to reach bucket %q: %w", p.bucket, err)
	}
	return true, nil
}

func (p *S3Peer) Store(fileID string, data []byte) error {
	if err := checkStore(fileID, data); err != nil {
		return err
	}

	ctx, cancel := p.callContext()
	defer cancel()

	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(fileID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", fileID, err)
	}
	return nil
}

func (p *S3Peer) Read(fileID string) ([]byte, error) {
	ctx, cancel := p.callContext()
	defer cancel()

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(fileID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", fileID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", fileID, err)
	}
	return data, nil
}

// Delete removes the object. S3 deletes are idempotent.
func (p *S3Peer) Delete(fileID string) error {
	ctx, cancel := p.callContext()
	defer cancel()

	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(fileID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", fileID, err)
	}
	return nil
}

func (p *S3Peer) Exists(fileID string) (bool, error) {
	ctx, cancel := p.callContext()
	defer cancel()

	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(fileID)),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s: %w", fileID, err)
	}
	return true, nil
}

// FreeSpace returns the configured capacity minus the size of every object
// under the prefix, or math.MaxInt64 when capacity is unbounded.
func (p *S3Peer) FreeSpace() (int64, error) {
	if p.capacity == 0 {
		return math.MaxInt64, nil
	}

	ctx, cancel := p.callContext()
	defer cancel()

	var used int64
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			used += aws.ToInt64(obj.Size)
		}
	}
	return max(p.capacity-used, 0), nil
}

// Compile-time check that S3Peer implements dfs.StoragePeer
var _ dfs.StoragePeer = (*S3Peer)(nil)
