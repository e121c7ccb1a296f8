package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// DefaultPartSize is the upload size above which multipart is used.
	DefaultPartSize int64 = 8 * 1024 * 1024
)

// ArchiveSource is what the archiver reads from.
type ArchiveSource interface {
	ListMarkets(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error)
	ListBets(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error)
}

// ArchiverConfig configures an Archiver.
type ArchiverConfig struct {
	// Prefix is prepended to every object key, e.g. "archive".
	Prefix string
	// PartSize switches uploads to multipart above this many bytes.
	PartSize int64
}

// ArchiveImpl implements domain.Archiver. It snapshots every market and bet
// as JSONL under {prefix}/markets/YYYY-MM-DD.jsonl and
// {prefix}/bets/YYYY-MM-DD.jsonl. Existing objects are never overwritten.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	source ArchiveSource
	audit  domain.AuditStore
	cfg    ArchiverConfig
	logger *slog.Logger
}

// NewArchiver creates an archiver. audit may be nil.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	source ArchiveSource,
	audit domain.AuditStore,
	cfg ArchiverConfig,
	logger *slog.Logger,
) *ArchiveImpl {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		source: source,
		audit:  audit,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Export uploads the snapshot for day. When both objects already exist the
// run is reported as skipped.
func (a *ArchiveImpl) Export(ctx context.Context, day time.Time) (domain.ArchiveResult, error) {
	res := domain.ArchiveResult{
		MarketsPath: a.objectPath("markets", day),
		BetsPath:    a.objectPath("bets", day),
	}

	markets, err := a.source.ListMarkets(ctx, domain.MarketFilter{SortBy: domain.SortByNewest})
	if err != nil {
		return res, fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	bets, err := a.source.ListBets(ctx, domain.ListOpts{})
	if err != nil {
		return res, fmt.Errorf("s3blob: archive bets query: %w", err)
	}

	wroteMarkets, err := putJSONL(ctx, a, res.MarketsPath, markets)
	if err != nil {
		return res, err
	}
	wroteBets, err := putJSONL(ctx, a, res.BetsPath, bets)
	if err != nil {
		return res, err
	}
	if wroteMarkets {
		res.Markets = len(markets)
	}
	if wroteBets {
		res.Bets = len(bets)
	}
	res.Skipped = !wroteMarkets && !wroteBets

	a.logger.InfoContext(ctx, "archive export finished",
		slog.String("markets_path", res.MarketsPath),
		slog.String("bets_path", res.BetsPath),
		slog.Int("markets", res.Markets),
		slog.Int("bets", res.Bets),
		slog.Bool("skipped", res.Skipped),
	)

	if a.audit != nil && !res.Skipped {
		if err := a.audit.Log(ctx, "archive.export", map[string]any{
			"markets_path": res.MarketsPath,
			"bets_path":    res.BetsPath,
			"markets":      res.Markets,
			"bets":         res.Bets,
			"day":          day.Format(time.DateOnly),
		}); err != nil {
			return res, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return res, nil
}

// putJSONL writes records to key unless the object exists. It reports
// whether anything was written.
func putJSONL[T any](ctx context.Context, a *ArchiveImpl, key string, records []T) (bool, error) {
	exists, err := a.reader.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("s3blob: archive check %s: %w", key, err)
	}
	if exists {
		a.logger.InfoContext(ctx, "archive object exists, skipping", slog.String("path", key))
		return false, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return false, fmt.Errorf("s3blob: archive marshal %s: %w", key, err)
	}

	if int64(len(buf)) > a.cfg.PartSize {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), a.cfg.PartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), jsonlContentType)
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		a.logger.InfoContext(ctx, "archive object written concurrently, skipping", slog.String("path", key))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("s3blob: archive upload %s: %w", key, err)
	}
	return true, nil
}

// List returns the archived objects of one kind ("markets" or "bets").
func (a *ArchiveImpl) List(ctx context.Context, kind string) ([]domain.BlobInfo, error) {
	infos, err := a.reader.List(ctx, path.Join(a.cfg.Prefix, kind)+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive list %s: %w", kind, err)
	}
	return infos, nil
}

// objectPath builds the key for one day's snapshot.
//
//	archive/markets/2026-10-19.jsonl
//	archive/bets/2026-10-19.jsonl
func (a *ArchiveImpl) objectPath(kind string, day time.Time) string {
	return path.Join(a.cfg.Prefix, kind, day.UTC().Format(time.DateOnly)+".jsonl")
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
