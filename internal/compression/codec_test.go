package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"none", None, false},
		{"xz", XZ, false},
		{"zstd", Zstd, false},
		{"bzip2", Bzip2, false},
		{"", Bzip2, false}, // Nix's default for an absent field
		{"lz4", "", true},
		{"XZ", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run("parse "+tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", None.Ext())
	assert.Equal(t, ".xz", XZ.Ext())
	assert.Equal(t, ".zstd", Zstd.Ext())
	assert.Equal(t, ".bz2", Bzip2.Ext())
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("nar archive bytes with some repetition "), 64)

	for _, codec := range []Codec{None, XZ, Zstd} {
		codec := codec
		t.Run(string(codec), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, err := codec.NewWriter(&buf)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if codec != None {
				assert.Less(t, buf.Len(), len(payload))
			}

			r, err := codec.NewReader(&buf)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, got)
		})
	}
}

func TestNoneIsPassthrough(t *testing.T) {
	t.Parallel()

	payload := []byte("stored verbatim")

	var buf bytes.Buffer
	w, err := None.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, payload, buf.Bytes())
}

func TestBzip2HasNoEncoder(t *testing.T) {
	t.Parallel()

	_, err := Bzip2.NewWriter(io.Discard)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestUnknownCodec(t *testing.T) {
	t.Parallel()

	_, err := Codec("lz4").NewReader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = Codec("lz4").NewWriter(io.Discard)
	assert.ErrorIs(t, err, ErrUnsupported)
}
