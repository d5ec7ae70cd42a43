package localstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"zombiezen.com/go/nix/nar"
)

// NixStore queries closure and reference data through the nix-store
// CLI and serializes path contents with the NAR writer. The store is
// treated as trusted, read-only input.
type NixStore struct {
	bin string
}

// NewNixStore returns a store backed by the given nix-store binary
// (empty means "nix-store" from PATH).
func NewNixStore(bin string) (*NixStore, error) {
	if bin == "" {
		bin = "nix-store"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("nix-store binary: %w", err)
	}
	return &NixStore{bin: bin}, nil
}

// Closure enumerates the requisites of path. nix-store emits them
// dependencies-first, which is the deterministic order the sparse
// copier relies on for resumable runs.
func (s *NixStore) Closure(ctx context.Context, path string) ([]string, error) {
	return s.query(ctx, "--requisites", path)
}

func (s *NixStore) References(ctx context.Context, path string) ([]string, error) {
	return s.query(ctx, "--references", path)
}

func (s *NixStore) Dump(ctx context.Context, path string, w io.Writer) error {
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("store path %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := nar.DumpPath(w, path); err != nil {
		return fmt.Errorf("dump %s: %w", path, err)
	}
	return nil
}

func (s *NixStore) query(ctx context.Context, op, path string) ([]string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.bin, "--query", op, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s --query %s %s: %s: %w", s.bin, op, path, msg, err)
		}
		return nil, fmt.Errorf("%s --query %s %s: %w", s.bin, op, path, err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}
