// Package narcache maintains Nix-style binary caches: narinfo metadata
// records plus compressed NAR blobs.
//
// The package detects inconsistency between metadata and blobs, asks
// peer caches which store paths they hold, fetches missing entries,
// rewrites blob compression, and performs sparse (closure-aware) copies
// from a local store into a cache.
//
// Basic usage:
//
//	c, _ := narcache.OpenLocalCache("/srv/cache")
//
//	// Local consistency: orphans and broken references
//	infos, nars, _ := narcache.ScanCache(ctx, c)
//	for name, cl := range narcache.Classify(infos, nars) {
//	    if cl.OrphanedNarInfo { ... }
//	}
//
//	// Ask peers what they hold
//	checker, _ := narcache.NewChecker([]string{"https://cache.nixos.org"})
//	results := checker.Check(ctx, hashes)
//
//	// Materialize missing entries
//	f, _ := narcache.NewFetcher(c, []string{"https://cache.nixos.org"})
//	report := f.FetchAll(ctx, hashes)
//
//	// Rewrite compression
//	r := narcache.NewRecompressor(c)
//	r.Recompress(ctx, hash, narcache.CompressionZstd)
//
//	// Sparse copy of a closure from the local store
//	store, _ := narcache.NewNixStore("")
//	cp := narcache.NewCopier(store, c)
//	report, _ = cp.Copy(ctx, "/nix/store/...-hello-2.12")
//
// All batch operations aggregate per-item outcomes into a Report
// instead of failing on the first error.
package narcache
