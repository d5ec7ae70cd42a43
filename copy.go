package narcache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Copier performs sparse closure copies from a local store into a
// cache: the root's closure is enumerated, members already present in
// the destination are skipped without being read, and the rest are
// packaged into narinfo+nar pairs and published atomically. Re-running
// an interrupted copy is safe; published entries are skipped.
type Copier struct {
	store       Store
	dst         Cache
	codec       Compression
	concurrency int
}

// NewCopier creates a copier from the given local store into dst.
func NewCopier(store Store, dst Cache, opts ...Option) *Copier {
	o := defaultOpts()
	for _, opt := range opts {
		opt(o)
	}
	return &Copier{
		store:       store,
		dst:         dst,
		codec:       o.compression,
		concurrency: o.concurrency,
	}
}

// Copy publishes the missing part of root's closure into the
// destination cache. Presence probes run on a bounded pool; the copies
// themselves proceed in the store's closure order (dependencies first)
// so interrupted runs resume deterministically. Per-item failures are
// collected in the report; only closure enumeration itself is fatal.
func (c *Copier) Copy(ctx context.Context, root string) (*Report, error) {
	closure, err := c.store.Closure(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("closure of %s: %w", root, err)
	}
	closure = dedupe(closure)

	hashes := make(map[string]string, len(closure)) // path -> hash
	report := &Report{}
	for _, p := range closure {
		hash, err := HashFromName(p)
		if err != nil {
			report.fail(p, err)
			continue
		}
		hashes[p] = hash
	}

	present := c.probePresent(ctx, hashes)

	fmt.Fprintf(os.Stderr, "[copy] closure of %d paths, %d already present\n", len(closure), len(present))

	for _, storePath := range closure {
		hash, ok := hashes[storePath]
		if !ok {
			continue // already reported
		}
		if present[hash] {
			report.skip()
			continue
		}
		if err := c.copyOne(ctx, storePath, hash); err != nil {
			report.fail(storePath, err)
			continue
		}
		report.success()
	}

	fmt.Fprintf(os.Stderr, "[copy] done: %s\n", report)
	return report, nil
}

func (c *Copier) probePresent(ctx context.Context, hashes map[string]string) map[string]bool {
	present := make(map[string]bool, len(hashes))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(c.concurrency)
	for _, hash := range hashes {
		hash := hash
		p.Go(func() {
			// Probe errors fall through to a copy attempt; treating
			// unknown as absent is the conservative choice.
			if ok, err := c.dst.HasNarInfo(ctx, hash); err == nil && ok {
				mu.Lock()
				present[hash] = true
				mu.Unlock()
			}
		})
	}
	p.Wait()
	return present
}

func (c *Copier) copyOne(ctx context.Context, storePath, hash string) error {
	refs, err := c.store.References(ctx, storePath)
	if err != nil {
		return fmt.Errorf("references: %w", err)
	}
	refNames := make([]string, 0, len(refs))
	for _, ref := range refs {
		refNames = append(refNames, path.Base(ref))
	}
	sort.Strings(refNames)

	tmp, err := os.CreateTemp("", "narcache-copy-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	fileHasher := sha256.New()
	fileCount := &countingWriter{}
	enc, err := c.codec.NewWriter(io.MultiWriter(tmp, fileHasher, fileCount))
	if err != nil {
		return err
	}

	narHasher := sha256.New()
	narCount := &countingWriter{}
	if err := c.store.Dump(ctx, storePath, io.MultiWriter(narHasher, narCount, enc)); err != nil {
		enc.Close()
		return fmt.Errorf("dump: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	narHash := FormatHash(narHasher.Sum(nil))
	fileHash := FormatHash(fileHasher.Sum(nil))
	fileSize := fileCount.n
	if c.codec == CompressionNone {
		fileHash = narHash
		fileSize = narCount.n
	}
	url := "nar/" + strings.TrimPrefix(fileHash, "sha256:") + ".nar" + c.codec.Ext()

	info := NewNarInfo(storePath, url, c.codec, fileHash, fileSize, narHash, narCount.n, refNames)
	text, err := info.MarshalText()
	if err != nil {
		return err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind temp file: %w", err)
	}
	if err := c.dst.PutPair(ctx, hash, text, url, tmp); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
