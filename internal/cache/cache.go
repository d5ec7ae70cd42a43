// Package cache implements the binary-cache storage layer.
//
// A binary cache is a flat namespace of <hash>.narinfo metadata records
// plus compressed NAR blobs under nar/. The Cache interface abstracts
// over a local filesystem-backed cache and a remote HTTP-backed peer;
// both expose the same read surface, while writes are only supported
// locally.
package cache

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a narinfo or nar does not exist in the cache.
	ErrNotFound = errors.New("cache: not found")

	// ErrReadOnly is returned by write operations on caches that do not
	// support them (remote peers).
	ErrReadOnly = errors.New("cache: read-only")
)

// Cache handles narinfo and NAR storage for one binary cache.
type Cache interface {
	// NarInfo retrieves the raw narinfo text for a store-path hash.
	NarInfo(ctx context.Context, hash string) ([]byte, error)

	// HasNarInfo probes for the existence of a narinfo without
	// retrieving it.
	HasNarInfo(ctx context.Context, hash string) (bool, error)

	// Nar opens the blob stored at the given cache-relative URL
	// (e.g. "nar/1f2...nar.xz"). Size is -1 when unknown.
	Nar(ctx context.Context, url string) (rc io.ReadCloser, size int64, err error)

	// ListNarInfos returns the store-path hashes of all narinfo records.
	ListNarInfos(ctx context.Context) ([]string, error)

	// ListNars returns the cache-relative URLs of all NAR blobs.
	ListNars(ctx context.Context) ([]string, error)

	// PutPair publishes a narinfo and its NAR blob together. The pair
	// becomes visible atomically: readers never observe the metadata
	// without the blob or a partially written blob.
	PutPair(ctx context.Context, hash string, info []byte, narURL string, nar io.Reader) error
}
