package narcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// Recompressor rewrites the compression codec of cached NAR blobs.
// The decompressed content is verified against NarHash/NarSize on the
// way through, and the updated narinfo carries new Compression,
// FileHash, FileSize and URL fields; NarHash and NarSize never change
// (they describe content, not encoding). The original blob is kept;
// old and new encodings of the same path may coexist.
type Recompressor struct {
	cache          Cache
	concurrency    int
	dropSignatures bool
}

// NewRecompressor creates a recompressor over the given cache.
func NewRecompressor(c Cache, opts ...Option) *Recompressor {
	o := defaultOpts()
	for _, opt := range opts {
		opt(o)
	}
	return &Recompressor{
		cache:          c,
		concurrency:    o.concurrency,
		dropSignatures: o.dropSignatures,
	}
}

// Recompress rewrites one store path's blob under the target codec and
// publishes the updated narinfo together with the new blob. Returns
// the updated record. If the blob already uses the target codec, the
// record is returned unchanged and nothing is written.
func (r *Recompressor) Recompress(ctx context.Context, hash string, target Compression) (*NarInfo, error) {
	if _, err := target.NewWriter(io.Discard); err != nil {
		return nil, err
	}

	infoText, err := r.cache.NarInfo(ctx, hash)
	if err != nil {
		return nil, err
	}
	info, err := ParseNarInfo(infoText)
	if err != nil {
		return nil, fmt.Errorf("narinfo %s: %w", hash, err)
	}
	if info.Compression == target {
		return info, nil
	}

	rc, _, err := r.cache.Nar(ctx, info.URL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec, err := info.Compression.NewReader(rc)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	tmp, err := os.CreateTemp("", "narcache-recompress-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	fileHasher := sha256.New()
	fileCount := &countingWriter{}
	enc, err := target.NewWriter(io.MultiWriter(tmp, fileHasher, fileCount))
	if err != nil {
		return nil, err
	}

	narHasher := sha256.New()
	narSize, err := io.Copy(io.MultiWriter(narHasher, enc), dec)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("recompress %s: %w", hash, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flush %s: %w", hash, err)
	}

	if got := FormatHash(narHasher.Sum(nil)); got != info.NarHash {
		return nil, fmt.Errorf("nar hash %s, narinfo declares %s: %w", got, info.NarHash, ErrIntegrityMismatch)
	}
	if narSize != info.NarSize {
		return nil, fmt.Errorf("nar size %d, narinfo declares %d: %w", narSize, info.NarSize, ErrIntegrityMismatch)
	}

	fileHash := FormatHash(fileHasher.Sum(nil))
	fileSize := fileCount.n
	if target == CompressionNone {
		// Uncompressed blobs are their own archive.
		fileHash = info.NarHash
		fileSize = info.NarSize
	}
	newURL := "nar/" + strings.TrimPrefix(fileHash, "sha256:") + ".nar" + target.Ext()

	info.set("Compression", target.String())
	info.set("FileHash", fileHash)
	info.set("FileSize", fmt.Sprintf("%d", fileSize))
	info.set("URL", newURL)
	if r.dropSignatures {
		info.dropSignatures()
	}

	updated, err := info.MarshalText()
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	if err := r.cache.PutPair(ctx, hash, updated, newURL, tmp); err != nil {
		return nil, fmt.Errorf("publish %s: %w", hash, err)
	}
	return info, nil
}

// RecompressAll rewrites many store paths, skipping those already at
// the target codec. CPU-bound work runs on a bounded pool.
func (r *Recompressor) RecompressAll(ctx context.Context, hashes []string, target Compression) *Report {
	fmt.Fprintf(os.Stderr, "[compress] %d paths -> %s\n", len(hashes), target)

	report := &Report{}
	p := pool.New().WithMaxGoroutines(r.concurrency)
	for _, hash := range hashes {
		hash := hash
		p.Go(func() {
			infoText, err := r.cache.NarInfo(ctx, hash)
			if err == nil {
				if info, perr := ParseNarInfo(infoText); perr == nil && info.Compression == target {
					report.skip()
					return
				}
			}
			if _, err := r.Recompress(ctx, hash, target); err != nil {
				report.fail(hash, err)
				return
			}
			report.success()
		})
	}
	p.Wait()

	fmt.Fprintf(os.Stderr, "[compress] done: %s\n", report)
	return report
}
