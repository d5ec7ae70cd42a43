package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds each request against a peer cache.
const DefaultTimeout = 10 * time.Second

// HTTP implements the read side of Cache against a remote binary cache
// (e.g. https://cache.nixos.org). Writes return ErrReadOnly.
//
// Narinfo bodies are kept in a small in-memory cache so that an
// availability probe followed by a fetch does not hit the peer twice.
type HTTP struct {
	base    string
	client  *http.Client
	timeout time.Duration
	infos   *memCache
}

// NewHTTP creates a peer cache client for the given base URL.
func NewHTTP(base string, client *http.Client, timeout time.Duration) (*HTTP, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid cache url %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid cache url %q: unsupported scheme", base)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		base:    strings.TrimSuffix(base, "/"),
		client:  client,
		timeout: timeout,
		infos:   newMemCache(256),
	}, nil
}

// URL returns the peer's base URL.
func (h *HTTP) URL() string { return h.base }

func (h *HTTP) NarInfo(ctx context.Context, hash string) ([]byte, error) {
	key := hash + ".narinfo"
	if data, ok := h.infos.Get(key); ok {
		return data, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := h.get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := h.checkStatus(resp, key); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", h.base, key, err)
	}
	h.infos.Add(key, data)
	return data, nil
}

func (h *HTTP) HasNarInfo(ctx context.Context, hash string) (bool, error) {
	key := hash + ".narinfo"
	if _, ok := h.infos.Get(key); ok {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.base+"/"+key, nil)
	if err != nil {
		return false, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe %s/%s: %w", h.base, key, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("probe %s/%s: unexpected status %s", h.base, key, resp.Status)
	}
}

// Nar streams a blob. The caller owns the returned reader; the request
// is bounded by ctx, not by the per-probe timeout, since large blobs
// legitimately take longer than a metadata round trip.
func (h *HTTP) Nar(ctx context.Context, narURL string) (io.ReadCloser, int64, error) {
	resp, err := h.get(ctx, narURL)
	if err != nil {
		return nil, 0, err
	}
	if err := h.checkStatus(resp, narURL); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (h *HTTP) ListNarInfos(ctx context.Context) ([]string, error) {
	return nil, fmt.Errorf("list %s: remote caches are not enumerable", h.base)
}

func (h *HTTP) ListNars(ctx context.Context) ([]string, error) {
	return nil, fmt.Errorf("list %s: remote caches are not enumerable", h.base)
}

func (h *HTTP) PutPair(ctx context.Context, hash string, info []byte, narURL string, nar io.Reader) error {
	return fmt.Errorf("put %s: %w", h.base, ErrReadOnly)
}

func (h *HTTP) get(ctx context.Context, key string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/"+key, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", h.base, key, err)
	}
	return resp, nil
}

func (h *HTTP) checkStatus(resp *http.Response, key string) error {
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%s: %w", h.base, key, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("get %s/%s: unexpected status %s", h.base, key, resp.Status)
	}
	return nil
}
