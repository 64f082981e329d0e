package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	pkgerrors "github.com/pkg/errors"

	"github.com/objectfs/windowio/internal/metrics"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/reader"
	"github.com/objectfs/windowio/pkg/retry"
	"github.com/objectfs/windowio/pkg/utils"
)

var logger = utils.GetLogger("s3")

// ObjectReader reads byte ranges of one S3 object. It implements io.ReaderAt, so a
// windowed reader can use it as a finite source that re-reads any range on demand.
type ObjectReader struct {
	client  API
	bucket  string
	key     string
	size    int64
	etag    string
	timeout time.Duration
	retryer *retry.Retryer
	metrics *metrics.Collector
}

// OpenObject looks up the object's size and returns a reader for it. Later range
// requests are pinned to the ETag seen here, so a replaced object fails instead of
// mixing old and new bytes.
func OpenObject(ctx context.Context, client API, bucket, key string, cfg *Config, collector *metrics.Collector) (*ObjectReader, error) {
	if client == nil {
		return nil, wioerrors.InvalidArgument("s3", "client must not be nil")
	}
	if bucket == "" {
		return nil, wioerrors.InvalidArgument("s3", "bucket name cannot be empty")
	}
	if key == "" {
		return nil, wioerrors.InvalidArgument("s3", "object key cannot be empty")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wioerrors.Newf(wioerrors.ErrCodeSourceRead, "failed to stat s3://%s/%s", bucket, key).
			WithComponent("s3").
			WithOperation("head").
			WithCause(translateError(err, bucket, key))
	}

	policy := cfg.Retry
	policy.ShouldRetry = transient
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warnf("range request on s3://%s/%s failed (attempt %d), retrying in %s: %s", bucket, key, attempt, delay, err)
	}

	o := &ObjectReader{
		client:  client,
		bucket:  bucket,
		key:     key,
		size:    aws.ToInt64(head.ContentLength),
		etag:    aws.ToString(head.ETag),
		timeout: cfg.RequestTimeout,
		retryer: retry.New(policy),
		metrics: collector,
	}
	logger.Debugf("opened s3://%s/%s (%s)", bucket, key, utils.FormatBytes(o.size))
	return o, nil
}

// Size returns the object size seen when the reader was opened.
func (o *ObjectReader) Size() int64 {
	return o.size
}

// ReadAt implements io.ReaderAt with one ranged GET per call.
func (o *ObjectReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= o.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	want := min(int64(len(p)), o.size-off)
	n, err := o.getRange(off, p[:want])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (o *ObjectReader) getRange(off int64, p []byte) (int, error) {
	var n int
	err := o.retryer.Do(func() error {
		var err error
		n, err = o.fetch(off, p)
		return err
	})
	return n, err
}

func (o *ObjectReader) fetch(off int64, p []byte) (int, error) {
	ctx := context.Background()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)),
	}
	if o.etag != "" {
		input.IfMatch = aws.String(o.etag)
	}

	start := time.Now()
	result, err := o.client.GetObject(ctx, input)
	if err != nil {
		o.metrics.RecordRangeRequest(time.Since(start), err)
		return 0, pkgerrors.Wrapf(translateError(err, o.bucket, o.key), "get %s", aws.ToString(input.Range))
	}
	defer result.Body.Close()

	n, err := io.ReadFull(result.Body, p)
	o.metrics.RecordRangeRequest(time.Since(start), err)
	if err != nil {
		return n, pkgerrors.Wrapf(err, "read body of %s (%d of %d bytes)", aws.ToString(input.Range), n, len(p))
	}
	return n, nil
}

// transient reports whether a failed range request may succeed when sent again.
// Missing objects, denied access and a changed ETag will not.
func transient(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket", "AccessDenied", "PreconditionFailed", "InvalidRange":
			return false
		}
	}
	return true
}

// NewReader opens an S3 object and returns a windowed reader over it.
func NewReader(ctx context.Context, client API, bucket, key string, cfg *Config, opts *reader.Options) (*reader.Reader, error) {
	var collector *metrics.Collector
	if opts != nil {
		collector = opts.Metrics
	}

	obj, err := OpenObject(ctx, client, bucket, key, cfg, collector)
	if err != nil {
		return nil, err
	}
	return reader.NewReaderAtReader(obj, obj.Size(), opts)
}
