package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// S3 rejects multipart parts below 5 MiB.
const minPartSize int64 = 5 << 20

// Bucket stores archive snapshots in one S3 bucket. Writes are
// create-only: an upload over an existing key fails with
// domain.ErrAlreadyExists on providers that honour If-None-Match.
type Bucket struct {
	api  *s3.Client
	name string
}

// NewBucket binds the client's configured bucket.
func NewBucket(c *Client) *Bucket {
	return &Bucket{api: c.S3(), name: c.Bucket()}
}

func (b *Bucket) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := b.api.PutObject(ctx, b.createOnly(key, data, contentType))
	return b.uploadErr("put", key, err)
}

// PutMultipart streams data in parts of at least partSize bytes.
func (b *Bucket) PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error {
	up := manager.NewUploader(b.api, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	_, err := up.Upload(ctx, b.createOnly(key, data, jsonlContentType))
	return b.uploadErr("multipart upload", key, err)
}

func (b *Bucket) createOnly(key string, data io.Reader, contentType string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	}
}

func (b *Bucket) uploadErr(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case httpStatus(err) == http.StatusPreconditionFailed:
		return fmt.Errorf("s3blob: %s %s: %w", op, key, domain.ErrAlreadyExists)
	default:
		return fmt.Errorf("s3blob: %s %s: %w", op, key, err)
	}
}

// List returns the snapshots under prefix ordered by key, which for dated
// keys is oldest first. Folder placeholder keys are skipped.
func (b *Bucket) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	pages := s3.NewListObjectsV2Paginator(b.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.name),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, domain.BlobInfo{
				Path:         key,
				Size:         aws.ToInt64(obj.Size),
				ContentType:  jsonlContentType,
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("s3blob: head %s: %w", key, err)
	}
}

// isNotFound covers NoSuchKey, HeadObject's bare NotFound and providers
// that only surface the status code.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf) || httpStatus(err) == http.StatusNotFound
}

// httpStatus extracts the response status from an SDK error, or 0.
func httpStatus(err error) int {
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

var (
	_ domain.BlobWriter = (*Bucket)(nil)
	_ domain.BlobReader = (*Bucket)(nil)
)
