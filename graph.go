package narcache

import (
	"context"
	"errors"
	"fmt"
)

// Classification holds the consistency facts computed for one cache
// node. The flags are independent booleans, not an enum: a node can be
// an orphaned narinfo and carry a missing reference at the same time.
type Classification struct {
	// Complete: metadata present, blob present, and every reference
	// resolves to metadata present in the cache. One-hop only;
	// transitive completeness is not required.
	Complete bool

	// OrphanedNarInfo: metadata present but the blob its URL names is absent.
	OrphanedNarInfo bool

	// OrphanedNar: blob present but no metadata names it.
	OrphanedNar bool

	// MissingReference: metadata declares a reference to a basename
	// for which no metadata exists in the cache.
	MissingReference bool
}

// Classify computes the classification for every node in the union of
// the metadata set and the blob set. infos is keyed by store-path
// hash; nars is the set of cache-relative blob URLs. Metadata-bearing
// nodes are keyed by hash in the result; metadata-less blobs are keyed
// by their URL.
//
// Pure and synchronous: a single local pass over set memberships, no
// reachability fixpoint.
func Classify(infos map[string]*NarInfo, nars map[string]struct{}) map[string]Classification {
	result := make(map[string]Classification, len(infos)+len(nars))
	referenced := make(map[string]struct{}, len(infos))

	for hash, info := range infos {
		_, blobPresent := nars[info.URL]
		referenced[info.URL] = struct{}{}

		missingRef := false
		for _, ref := range info.References {
			refHash, err := HashFromName(ref)
			if err != nil {
				missingRef = true
				break
			}
			if _, ok := infos[refHash]; !ok {
				missingRef = true
				break
			}
		}

		result[hash] = Classification{
			Complete:         blobPresent && !missingRef,
			OrphanedNarInfo:  !blobPresent,
			MissingReference: missingRef,
		}
	}

	for url := range nars {
		if _, ok := referenced[url]; !ok {
			result[url] = Classification{OrphanedNar: true}
		}
	}

	return result
}

// ScanCache loads every narinfo record and blob name from a cache for
// classification. Malformed records are reported individually and do
// not abort the scan.
func ScanCache(ctx context.Context, c Cache) (map[string]*NarInfo, map[string]struct{}, []ItemError) {
	var malformed []ItemError

	hashes, err := c.ListNarInfos(ctx)
	if err != nil {
		return nil, nil, []ItemError{{Name: "narinfo listing", Err: err}}
	}

	infos := make(map[string]*NarInfo, len(hashes))
	for _, hash := range hashes {
		data, err := c.NarInfo(ctx, hash)
		if err != nil {
			malformed = append(malformed, ItemError{Name: hash, Err: err})
			continue
		}
		info, err := ParseNarInfo(data)
		if err != nil {
			malformed = append(malformed, ItemError{Name: hash, Err: err})
			continue
		}
		infos[hash] = info
	}

	urls, err := c.ListNars(ctx)
	if err != nil {
		return nil, nil, append(malformed, ItemError{Name: "nar listing", Err: err})
	}
	nars := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		nars[url] = struct{}{}
	}

	return infos, nars, malformed
}

// ClosureResult is the outcome of walking a cache-resident closure.
type ClosureResult struct {
	// Order lists the member hashes in discovery order, root first.
	Order []string

	// Infos maps member hashes to their parsed records.
	Infos map[string]*NarInfo

	// Missing lists reference hashes for which the cache holds no
	// metadata. Not an error: absence is a detectable condition.
	Missing []string

	// Malformed lists members whose records could not be read or
	// parsed, and references whose names carry no valid hash. Such a
	// member's own references are unreachable, but the walk continues
	// over the rest of the closure.
	Malformed []ItemError
}

// CacheClosure walks narinfo references starting from the given
// store-path hash, reading records from the cache. References whose
// metadata is absent end up in Missing, unreadable or unparseable
// members in Malformed; neither fails the walk.
func CacheClosure(ctx context.Context, c Cache, hash string) (*ClosureResult, error) {
	if !IsStoreHash(hash) {
		return nil, fmt.Errorf("invalid store hash %q", hash)
	}

	res := &ClosureResult{Infos: make(map[string]*NarInfo)}
	visited := make(map[string]struct{})
	queue := []string{hash}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if _, ok := visited[h]; ok {
			continue
		}
		visited[h] = struct{}{}

		data, err := c.NarInfo(ctx, h)
		switch {
		case errors.Is(err, ErrNotFound):
			res.Missing = append(res.Missing, h)
			continue
		case err != nil:
			res.Malformed = append(res.Malformed, ItemError{Name: h, Err: err})
			continue
		}
		info, err := ParseNarInfo(data)
		if err != nil {
			res.Malformed = append(res.Malformed, ItemError{Name: h, Err: err})
			continue
		}
		res.Infos[h] = info
		res.Order = append(res.Order, h)

		for _, ref := range info.References {
			refHash, err := HashFromName(ref)
			if err != nil {
				res.Malformed = append(res.Malformed, ItemError{Name: h, Err: fmt.Errorf("reference %q: %w", ref, err)})
				continue
			}
			if refHash != h {
				queue = append(queue, refHash)
			}
		}
	}
	return res, nil
}
