package cache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "s66mzxpvicwk07gjbjfw9izjfa797vsw"

func TestLocalPutPairRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)

	info := []byte("StorePath: /nix/store/" + testHash + "-pkg\n")
	blob := []byte("compressed nar bytes")
	url := "nar/abcdef.nar.xz"

	require.NoError(t, l.PutPair(ctx, testHash, info, url, bytes.NewReader(blob)))

	got, err := l.NarInfo(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, info, got)

	ok, err := l.HasNarInfo(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, size, err := l.Nar(ctx, url)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, blob, data)
	assert.Equal(t, int64(len(blob)), size)
}

func TestLocalNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.NarInfo(ctx, testHash)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := l.HasNarInfo(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = l.Nar(ctx, "nar/missing.nar.xz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalLists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)

	hashes, err := l.ListNarInfos(ctx)
	require.NoError(t, err)
	assert.Empty(t, hashes)

	require.NoError(t, l.PutPair(ctx, testHash, []byte("info\n"), "nar/one.nar.xz", strings.NewReader("x")))
	other := strings.Repeat("a", 32)
	require.NoError(t, l.PutPair(ctx, other, []byte("info\n"), "nar/two.nar.zstd", strings.NewReader("y")))

	hashes, err = l.ListNarInfos(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{testHash, other}, hashes)

	urls, err := l.ListNars(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"nar/one.nar.xz", "nar/two.nar.zstd"}, urls)
}

func TestLocalListNarsSkipsTempFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)

	// A crashed writer leaves a temp file behind; it must stay invisible.
	require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), "nar", ".tmp-12345"), []byte("partial"), 0644))
	require.NoError(t, l.PutPair(ctx, testHash, []byte("info\n"), "nar/one.nar.xz", strings.NewReader("x")))

	urls, err := l.ListNars(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nar/one.nar.xz"}, urls)
}

func TestLocalRejectsEscapingURLs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)

	for _, url := range []string{"../outside.nar", "nar/../../outside.nar", "/etc/passwd"} {
		require.Error(t, l.PutPair(ctx, testHash, []byte("info\n"), url, strings.NewReader("x")), url)
		_, _, err = l.Nar(ctx, url)
		require.Error(t, err, url)
	}
}

func TestLocalOverwriteIsAtomicReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := OpenLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.PutPair(ctx, testHash, []byte("first\n"), "nar/a.nar", strings.NewReader("v1")))
	require.NoError(t, l.PutPair(ctx, testHash, []byte("second\n"), "nar/b.nar", strings.NewReader("v2")))

	got, err := l.NarInfo(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("second\n"), got)
}
