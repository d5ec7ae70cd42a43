package localstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/nix/nar"
)

func TestNewNixStoreMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewNixStore("definitely-not-a-real-binary-name")
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello"), []byte("hello world\n"), 0644))

	s := &NixStore{bin: "nix-store"}
	var buf bytes.Buffer
	require.NoError(t, s.Dump(ctx, dir, &buf))

	// The output is a readable NAR archive containing the file.
	nr := nar.NewReader(&buf)
	found := false
	for {
		hdr, err := nr.Next()
		if err != nil {
			break
		}
		if strings.HasSuffix(hdr.Path, "hello") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDumpMissingPath(t *testing.T) {
	t.Parallel()

	s := &NixStore{bin: "nix-store"}
	err := s.Dump(context.Background(), filepath.Join(t.TempDir(), "nope"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestDumpCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &NixStore{bin: "nix-store"}
	err := s.Dump(ctx, t.TempDir(), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
