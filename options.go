package narcache

import (
	"net/http"
	"time"

	"github.com/aweris/narcache/internal/cache"
	"github.com/aweris/narcache/internal/compression"
)

// Defaults shared by the network-bound components.
const (
	DefaultConcurrency     = 4
	DefaultPeerConcurrency = 4
	DefaultRetries         = 3
)

type options struct {
	concurrency     int
	peerConcurrency int
	timeout         time.Duration
	retries         int
	compression     compression.Codec
	dropSignatures  bool
	httpClient      *http.Client
}

// Option is a functional option shared by the component constructors.
type Option func(*options)

func defaultOpts() *options {
	return &options{
		concurrency:     DefaultConcurrency,
		peerConcurrency: DefaultPeerConcurrency,
		timeout:         cache.DefaultTimeout,
		retries:         DefaultRetries,
		compression:     compression.XZ,
	}
}

// WithConcurrency sets the number of parallel workers for batch
// operations (fetches, probes, copies).
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithPeerConcurrency caps the simultaneous in-flight probes per peer.
func WithPeerConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.peerConcurrency = n
		}
	}
}

// WithTimeout sets the per-request timeout for metadata operations
// against remote caches.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetries bounds how often a failed transfer is retried after its
// first attempt.
func WithRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retries = n
		}
	}
}

// WithCompression sets the target codec for the sparse copier.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithDropSignatures makes the recompressor strip Sig fields from
// rewritten records. By default signatures are kept: Nix signatures
// cover the store path, NarHash, NarSize and references, none of which
// change under recompression.
func WithDropSignatures() Option {
	return func(o *options) { o.dropSignatures = true }
}

// WithHTTPClient sets the HTTP client used for remote caches.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}
