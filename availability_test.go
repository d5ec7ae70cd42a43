package narcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peerWith serves 200 for the given narinfo hashes and 404 otherwise.
func peerWith(t *testing.T, hashes ...string) *httptest.Server {
	t.Helper()

	held := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		held[h+".narinfo"] = struct{}{}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := held[r.URL.Path[1:]]; ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckerCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	peer1 := peerWith(t, hashA, hashB)
	peer2 := peerWith(t, hashB)

	checker, err := NewChecker([]string{peer1.URL, peer2.URL})
	require.NoError(t, err)

	results := checker.Check(ctx, []string{hashA, hashB, hashC})
	require.Len(t, results, 3)

	assert.Equal(t, Present, results[hashA][peer1.URL].Status)
	assert.Equal(t, Absent, results[hashA][peer2.URL].Status)
	assert.Equal(t, Present, results[hashB][peer1.URL].Status)
	assert.Equal(t, Present, results[hashB][peer2.URL].Status)
	assert.Equal(t, Absent, results[hashC][peer1.URL].Status)
	assert.Equal(t, Absent, results[hashC][peer2.URL].Status)

	assert.True(t, AnyPresent(results[hashA]))
	assert.True(t, AnyPresent(results[hashB]))
	assert.False(t, AnyPresent(results[hashC]))
}

func TestCheckerUnreachablePeerIsUnknown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	healthy := peerWith(t, hashA)

	// A peer that never answers within the probe timeout.
	release := make(chan struct{})
	hung := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		hung.Close()
	})

	checker, err := NewChecker([]string{healthy.URL, hung.URL},
		WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	results := checker.Check(ctx, []string{hashA})

	// One slow peer degrades only its own answers.
	assert.Equal(t, Present, results[hashA][healthy.URL].Status)
	assert.Equal(t, Unknown, results[hashA][hung.URL].Status)
	assert.Error(t, results[hashA][hung.URL].Err)
	assert.True(t, AnyPresent(results[hashA]))
}

func TestCheckerErroringPeerIsUnknown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	checker, err := NewChecker([]string{broken.URL})
	require.NoError(t, err)

	results := checker.Check(ctx, []string{hashA})
	res := results[hashA][broken.URL]
	assert.Equal(t, Unknown, res.Status)
	assert.Error(t, res.Err)
}

func TestNewCheckerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChecker(nil)
	assert.Error(t, err)

	_, err = NewChecker([]string{"ftp://example.org"})
	assert.Error(t, err)
}

func TestAvailabilityString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "present", Present.String())
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "unknown", Unknown.String())
}
