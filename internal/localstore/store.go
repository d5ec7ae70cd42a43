// Package localstore exposes the local Nix store as a read-only
// collaborator: closure enumeration, reference queries, and NAR
// serialization of store paths.
package localstore

import (
	"context"
	"io"
)

// Store is the read side of a local store. Implementations must be
// safe for concurrent use.
type Store interface {
	// Closure returns all store paths reachable from path via
	// dependency references, dependencies first, de-duplicated.
	Closure(ctx context.Context, path string) ([]string, error)

	// References returns the store paths that path directly references.
	References(ctx context.Context, path string) ([]string, error)

	// Dump writes the NAR serialization of path to w.
	Dump(ctx context.Context, path string, w io.Writer) error
}
