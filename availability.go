package narcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// Availability is the outcome of one presence probe against one peer.
type Availability int

const (
	// Unknown means the probe errored or timed out; the caller decides
	// whether to treat it as absent or retry.
	Unknown Availability = iota
	Present
	Absent
)

func (a Availability) String() string {
	switch a {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// ProbeResult pairs an availability status with the error behind an
// Unknown outcome.
type ProbeResult struct {
	Status Availability
	Err    error
}

// Checker asks peer caches whether they hold given store-path hashes.
// Probes are lightweight narinfo existence checks; results are
// produced fresh per call and never cached across runs.
type Checker struct {
	peers           []*HTTPCache
	peerConcurrency int
}

// NewChecker creates a checker for the given peer cache URLs.
func NewChecker(peerURLs []string, opts ...Option) (*Checker, error) {
	o := defaultOpts()
	for _, opt := range opts {
		opt(o)
	}

	if len(peerURLs) == 0 {
		return nil, fmt.Errorf("no peer caches given")
	}
	peers := make([]*HTTPCache, 0, len(peerURLs))
	for _, url := range peerURLs {
		peer, err := OpenHTTPCache(url, opts...)
		if err != nil {
			return nil, err
		}
		peers = append(peers, peer)
	}
	return &Checker{peers: peers, peerConcurrency: o.peerConcurrency}, nil
}

// Check probes every (hash, peer) pair and returns the results keyed
// by hash, then by peer URL. Probes for independent hashes run in
// parallel with a bounded number in flight per peer. A peer that
// errors or times out yields Unknown for the affected hashes only; the
// batch itself never fails. There is no retry here; retry policy
// belongs to the caller.
func (c *Checker) Check(ctx context.Context, hashes []string) map[string]map[string]ProbeResult {
	results := make(map[string]map[string]ProbeResult, len(hashes))
	for _, h := range hashes {
		results[h] = make(map[string]ProbeResult, len(c.peers))
	}

	var mu sync.Mutex
	wg := conc.NewWaitGroup()
	for _, peer := range c.peers {
		peer := peer
		wg.Go(func() {
			p := pool.New().WithMaxGoroutines(c.peerConcurrency)
			for _, hash := range hashes {
				hash := hash
				p.Go(func() {
					res := probe(ctx, peer, hash)
					mu.Lock()
					results[hash][peer.URL()] = res
					mu.Unlock()
				})
			}
			p.Wait()
		})
	}
	wg.Wait()

	return results
}

// AnyPresent reports whether at least one peer holds the hash
// according to the given results.
func AnyPresent(byPeer map[string]ProbeResult) bool {
	for _, res := range byPeer {
		if res.Status == Present {
			return true
		}
	}
	return false
}

func probe(ctx context.Context, peer *HTTPCache, hash string) ProbeResult {
	ok, err := peer.HasNarInfo(ctx, hash)
	if err != nil {
		return ProbeResult{Status: Unknown, Err: err}
	}
	if ok {
		return ProbeResult{Status: Present}
	}
	return ProbeResult{Status: Absent}
}
