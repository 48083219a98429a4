package peer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-memory S3API holding the objects of a single bucket.
type fakeS3 struct {
	mu            sync.Mutex
	bucket        string
	objects       map[string][]byte
	bucketMissing bool
	transportErr  error
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.transportErr != nil {
		return nil, f.transportErr
	}
	if f.bucketMissing || aws.ToString(in.Bucket) != f.bucket {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "bucket not found"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var contents []types.Object
	for key, data := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			contents = append(contents, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(data)))})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func newTestS3Peer(t *testing.T, client *fakeS3, capacity int64) *S3Peer {
	t.Helper()
	p, err := NewS3Peer("node1", S3PeerConfig{
		Client:   client,
		Bucket:   client.bucket,
		Prefix:   "dfs/",
		Capacity: capacity,
	})
	if err != nil {
		t.Fatalf("NewS3Peer() error = %v", err)
	}
	return p
}

func TestNewS3Peer(t *testing.T) {
	if _, err := NewS3Peer("node1", S3PeerConfig{Bucket: "b"}); err == nil {
		t.Error("NewS3Peer() without client expected error")
	}
	if _, err := NewS3Peer("node1", S3PeerConfig{Client: newFakeS3("b")}); err == nil {
		t.Error("NewS3Peer() without bucket expected error")
	}
}

func TestS3Peer_StoreReadDelete(t *testing.T) {
	client := newFakeS3("blobs")
	p := newTestS3Peer(t, client, 0)

	if err := p.Store("f1", []byte("hello s3")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if _, ok := client.objects["dfs/f1"]; !ok {
		t.Error("object not stored under prefix")
	}

	got, err := p.Read("f1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "hello s3" {
		t.Errorf("Read() = %q, want %q", got, "hello s3")
	}

	if ok, err := p.Exists("f1"); err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
	}

	if err := p.Delete("f1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, err := p.Exists("f1"); err != nil || ok {
		t.Errorf("Exists() after delete = %v, %v; want false, nil", ok, err)
	}
	if _, err := p.Read("f1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read() after delete error = %v, want ErrNotFound", err)
	}
}

func TestS3Peer_StoreValidation(t *testing.T) {
	p := newTestS3Peer(t, newFakeS3("blobs"), 0)

	if err := p.Store("", []byte("x")); err == nil {
		t.Error("Store() with empty id expected error")
	}
	if err := p.Store("f1", nil); err == nil {
		t.Error("Store() with nil data expected error")
	}
}

func TestS3Peer_IsHealthy(t *testing.T) {
	t.Run("bucket reachable", func(t *testing.T) {
		p := newTestS3Peer(t, newFakeS3("blobs"), 0)
		if ok, err := p.IsHealthy(); !ok || err != nil {
			t.Errorf("IsHealthy() = %v, %v; want true, nil", ok, err)
		}
	})

	t.Run("bucket missing", func(t *testing.T) {
		client := newFakeS3("blobs")
		client.bucketMissing = true
		p := newTestS3Peer(t, client, 0)
		if ok, err := p.IsHealthy(); ok || err != nil {
			t.Errorf("IsHealthy() = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		client := newFakeS3("blobs")
		client.transportErr = errors.New("connection refused")
		p := newTestS3Peer(t, client, 0)
		if _, err := p.IsHealthy(); err == nil {
			t.Error("IsHealthy() expected error")
		}
	})
}

func TestS3Peer_FreeSpace(t *testing.T) {
	t.Run("unbounded", func(t *testing.T) {
		p := newTestS3Peer(t, newFakeS3("blobs"), 0)
		if free, _ := p.FreeSpace(); free != math.MaxInt64 {
			t.Errorf("FreeSpace() = %d, want MaxInt64", free)
		}
	})

	t.Run("capacity minus stored objects", func(t *testing.T) {
		client := newFakeS3("blobs")
		client.objects["other/x"] = make([]byte, 50)
		p := newTestS3Peer(t, client, 100)
		p.Store("a", make([]byte, 30))
		p.Store("b", make([]byte, 20))

		free, err := p.FreeSpace()
		if err != nil {
			t.Fatalf("FreeSpace() error = %v", err)
		}
		if free != 50 {
			t.Errorf("FreeSpace() = %d, want 50", free)
		}
	})
}
