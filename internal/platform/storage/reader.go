package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
)

const defaultMaxObjectBytes = 8 << 20

var (
	// ErrObjectNotFound reports a missing bucket or object.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrObjectTooLarge reports an object over the reader's size limit.
	ErrObjectTooLarge = errors.New("storage: object exceeds size limit")
)

// Reader fetches small documents such as the menu catalog from Cloud Storage.
type Reader struct {
	client   *gcs.Client
	maxBytes int64
}

// ReaderOption customises Reader.
type ReaderOption func(*Reader)

// WithMaxObjectBytes caps how much of an object is read.
func WithMaxObjectBytes(limit int64) ReaderOption {
	return func(r *Reader) {
		if limit > 0 {
			r.maxBytes = limit
		}
	}
}

// NewReader constructs a Reader backed by client.
func NewReader(client *gcs.Client, opts ...ReaderOption) (*Reader, error) {
	if client == nil {
		return nil, errors.New("storage reader: client is required")
	}
	r := &Reader{client: client, maxBytes: defaultMaxObjectBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// ReadObject returns the full contents of bucket/object.
func (r *Reader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	bucket, object, err := objectPath(bucket, object)
	if err != nil {
		return nil, err
	}
	rc, err := r.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, translate(bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("storage reader: read gs://%s/%s: %w", bucket, object, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectTooLarge, bucket, object)
	}
	return data, nil
}

// Stat checks that bucket/object exists without reading it.
func (r *Reader) Stat(ctx context.Context, bucket, object string) error {
	bucket, object, err := objectPath(bucket, object)
	if err != nil {
		return err
	}
	if _, err := r.client.Bucket(bucket).Object(object).Attrs(ctx); err != nil {
		return translate(bucket, object, err)
	}
	return nil
}

func objectPath(bucket, object string) (string, string, error) {
	bucket = strings.TrimSpace(bucket)
	object = strings.TrimPrefix(strings.TrimSpace(object), "/")
	if bucket == "" || object == "" {
		return "", "", errors.New("storage reader: bucket and object must be provided")
	}
	return bucket, object, nil
}

func translate(bucket, object string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
	}
	return fmt.Errorf("storage reader: gs://%s/%s: %w", bucket, object, err)
}
