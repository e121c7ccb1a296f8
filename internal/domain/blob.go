package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ArchiveResult summarises one export run.
type ArchiveResult struct {
	MarketsPath string
	BetsPath    string
	Markets     int
	Bets        int
	Skipped     bool
}

// Archiver exports a snapshot of markets and bets to cold storage.
type Archiver interface {
	Export(ctx context.Context, day time.Time) (ArchiveResult, error)
}
