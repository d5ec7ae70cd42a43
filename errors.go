package narcache

import (
	"errors"

	"github.com/aweris/narcache/internal/cache"
	"github.com/aweris/narcache/internal/compression"
)

var (
	// ErrMalformedRecord is returned when a narinfo record cannot be parsed.
	ErrMalformedRecord = errors.New("narcache: malformed narinfo record")

	// ErrIntegrityMismatch is returned when downloaded or stored content
	// does not match the hashes its metadata declares.
	ErrIntegrityMismatch = errors.New("narcache: integrity mismatch")

	// ErrTransferFailed is returned for network or disk I/O failures
	// during a transfer. Retryable by the caller.
	ErrTransferFailed = errors.New("narcache: transfer failed")
)

// Errors re-exported from internal packages.
var (
	// ErrNotFound is returned when a narinfo or nar is absent from a cache.
	ErrNotFound = cache.ErrNotFound

	// ErrReadOnly is returned by write operations against remote caches.
	ErrReadOnly = cache.ErrReadOnly

	// ErrUnsupportedCompression is returned for unknown codecs or codecs
	// without an encoder.
	ErrUnsupportedCompression = compression.ErrUnsupported
)
