package narcache

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStoreHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"valid hash", testHash, true},
		{"too short", testHash[:31], false},
		{"too long", testHash + "a", false},
		{"contains e", strings.Repeat("e", 32), false},
		{"contains uppercase", strings.ToUpper(testHash), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsStoreHash(tt.in))
		})
	}
}

func TestHashFromName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"full store path", "/nix/store/" + testHash + "-hello-2.12.1", testHash, false},
		{"basename", testHash + "-hello-2.12.1", testHash, false},
		{"bare hash", testHash, testHash, false},
		{"trailing slash", "/nix/store/" + testHash + "-hello/", testHash, false},
		{"too short", "abc", "", true},
		{"bad alphabet", strings.Repeat("e", 32) + "-hello", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := HashFromName(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatHash(t *testing.T) {
	t.Parallel()

	sum := sha256.Sum256([]byte("hello"))
	got := FormatHash(sum[:])

	assert.True(t, strings.HasPrefix(got, "sha256:"))
	assert.True(t, validHashField(got))
}

func TestValidHashField(t *testing.T) {
	t.Parallel()

	assert.True(t, validHashField(testDigest))
	assert.False(t, validHashField("sha256:short"))
	assert.False(t, validHashField("md5:"+strings.Repeat("0", 52)))
	assert.False(t, validHashField(strings.Repeat("0", 52)))
	assert.False(t, validHashField("sha256:"+strings.Repeat("e", 52)))
}
