package narcache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Fetcher downloads narinfo+nar pairs from source caches into a local
// cache, verifying both the compressed and the decompressed hash
// before anything becomes visible.
type Fetcher struct {
	dst         Cache
	sources     []*HTTPCache
	concurrency int
	retries     int
}

// NewFetcher creates a fetcher that tries the given source cache URLs
// in order for each hash.
func NewFetcher(dst Cache, sourceURLs []string, opts ...Option) (*Fetcher, error) {
	o := defaultOpts()
	for _, opt := range opts {
		opt(o)
	}

	if len(sourceURLs) == 0 {
		return nil, fmt.Errorf("no source caches given")
	}
	sources := make([]*HTTPCache, 0, len(sourceURLs))
	for _, url := range sourceURLs {
		src, err := OpenHTTPCache(url, opts...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return &Fetcher{
		dst:         dst,
		sources:     sources,
		concurrency: o.concurrency,
		retries:     o.retries,
	}, nil
}

// Fetch retrieves one store path. Sources are tried in order until one
// succeeds. On a hash mismatch the partially written blob is discarded
// and ErrIntegrityMismatch is reported; mid-stream network failures
// surface as ErrTransferFailed.
func (f *Fetcher) Fetch(ctx context.Context, hash string) error {
	var lastErr error
	for _, src := range f.sources {
		err := f.fetchFrom(ctx, src, hash)
		if err == nil {
			return nil
		}
		if lastErr == nil || errors.Is(lastErr, ErrNotFound) {
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return fmt.Errorf("%s: %w", hash, lastErr)
}

// FetchAll retrieves many store paths with a bounded worker pool.
// Paths already present in the destination are skipped; transfers are
// retried with backoff; per-item failures are collected into the
// report instead of aborting the batch.
func (f *Fetcher) FetchAll(ctx context.Context, hashes []string) *Report {
	fmt.Fprintf(os.Stderr, "[fetch] %d paths from %d caches\n", len(hashes), len(f.sources))

	report := &Report{}
	p := pool.New().WithMaxGoroutines(f.concurrency)
	for _, hash := range hashes {
		hash := hash
		p.Go(func() {
			if ok, err := f.dst.HasNarInfo(ctx, hash); err == nil && ok {
				report.skip()
				return
			}
			// retries counts attempts after the first one.
			_, err := retry(ctx, f.retries+1, isRetryable, func() (struct{}, error) {
				return struct{}{}, f.Fetch(ctx, hash)
			})
			if err != nil {
				report.fail(hash, err)
				return
			}
			report.success()
		})
	}
	p.Wait()

	fmt.Fprintf(os.Stderr, "[fetch] done: %s\n", report)
	return report
}

func (f *Fetcher) fetchFrom(ctx context.Context, src *HTTPCache, hash string) error {
	infoText, err := src.NarInfo(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Join(ErrTransferFailed, err)
	}
	info, err := ParseNarInfo(infoText)
	if err != nil {
		return err
	}

	rc, _, err := src.Nar(ctx, info.URL)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Join(ErrTransferFailed, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "narcache-fetch-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	fileHasher := sha256.New()
	fileCount := &countingWriter{}
	compressed := io.TeeReader(rc, io.MultiWriter(tmp, fileHasher, fileCount))

	dec, err := info.Compression.NewReader(compressed)
	if err != nil {
		return err
	}
	narHasher := sha256.New()
	narSize, copyErr := io.Copy(narHasher, dec)
	dec.Close()
	if copyErr != nil {
		// Drain the remaining compressed bytes so the file hash covers
		// the full body; a decoder error on an intact body is corrupt
		// content, not a transfer failure.
		if _, err := io.Copy(io.Discard, compressed); err == nil &&
			FormatHash(fileHasher.Sum(nil)) != info.FileHash {
			return fmt.Errorf("%w: %v", ErrIntegrityMismatch, copyErr)
		}
		return errors.Join(ErrTransferFailed, copyErr)
	}

	if got := FormatHash(fileHasher.Sum(nil)); got != info.FileHash {
		return fmt.Errorf("file hash %s, narinfo declares %s: %w", got, info.FileHash, ErrIntegrityMismatch)
	}
	if fileCount.n != info.FileSize {
		return fmt.Errorf("file size %d, narinfo declares %d: %w", fileCount.n, info.FileSize, ErrIntegrityMismatch)
	}
	if got := FormatHash(narHasher.Sum(nil)); got != info.NarHash {
		return fmt.Errorf("nar hash %s, narinfo declares %s: %w", got, info.NarHash, ErrIntegrityMismatch)
	}
	if narSize != info.NarSize {
		return fmt.Errorf("nar size %d, narinfo declares %d: %w", narSize, info.NarSize, ErrIntegrityMismatch)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind temp file: %w", err)
	}
	if err := f.dst.PutPair(ctx, hash, infoText, info.URL, tmp); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrTransferFailed)
}

// retry runs fn up to maxAttempts times with exponential backoff,
// stopping early on context cancellation or a non-retryable error.
func retry[T any](ctx context.Context, maxAttempts int, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond // 500ms, 1s, 2s, 4s...
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
