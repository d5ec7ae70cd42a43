package narcache

import (
	"github.com/aweris/narcache/internal/cache"
	"github.com/aweris/narcache/internal/compression"
	"github.com/aweris/narcache/internal/localstore"
)

// Cache is the storage interface for one binary cache.
// Re-exported from internal/cache for convenience.
type Cache = cache.Cache

// LocalCache is a filesystem-backed cache.
type LocalCache = cache.Local

// HTTPCache is a remote peer cache (read-only).
type HTTPCache = cache.HTTP

// Store is the local-store collaborator interface.
// Re-exported from internal/localstore for convenience.
type Store = localstore.Store

// NixStore queries a local Nix store through the nix-store CLI.
type NixStore = localstore.NixStore

// Compression identifies a NAR codec as it appears in narinfo records.
type Compression = compression.Codec

// Supported codecs. Bzip2 is decode-only.
const (
	CompressionNone  = compression.None
	CompressionXZ    = compression.XZ
	CompressionZstd  = compression.Zstd
	CompressionBzip2 = compression.Bzip2
)

// OpenLocalCache opens or creates a filesystem-backed cache at dir.
func OpenLocalCache(dir string) (*LocalCache, error) {
	return cache.OpenLocal(dir)
}

// OpenHTTPCache creates a client for a remote binary cache.
func OpenHTTPCache(url string, opts ...Option) (*HTTPCache, error) {
	o := defaultOpts()
	for _, opt := range opts {
		opt(o)
	}
	return cache.NewHTTP(url, o.httpClient, o.timeout)
}

// NewNixStore returns a local-store collaborator backed by the given
// nix-store binary (empty means "nix-store" from PATH).
func NewNixStore(bin string) (*NixStore, error) {
	return localstore.NewNixStore(bin)
}

// ParseCompression validates a narinfo Compression field value.
// The empty string means bzip2, matching Nix's default.
func ParseCompression(s string) (Compression, error) {
	return compression.Parse(s)
}
