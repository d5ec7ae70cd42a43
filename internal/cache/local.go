package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Local implements Cache on a filesystem directory.
//
// Storage layout (the standard binary-cache layout):
//
//	dir/
//	  <hash>.narinfo
//	  nar/
//	    <filehash>.nar[.xz|.zstd|.bz2]
//
// Writes go through a temporary file plus atomic rename, so concurrent
// readers never observe a partially written entry. Writers targeting
// the same hash are serialized with a per-hash lock; content for a
// given hash is immutable, so last-writer-wins is safe.
type Local struct {
	dir   string
	locks sync.Map // hash -> *sync.Mutex
}

const narSubdir = "nar"

// OpenLocal opens or creates a filesystem-backed cache rooted at dir.
func OpenLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(dir, narSubdir), 0755); err != nil {
		return nil, fmt.Errorf("create nar dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Dir returns the cache root directory.
func (l *Local) Dir() string { return l.dir }

func (l *Local) NarInfo(ctx context.Context, hash string) ([]byte, error) {
	data, err := os.ReadFile(l.narinfoPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("narinfo %s: %w", hash, ErrNotFound)
		}
		return nil, fmt.Errorf("read narinfo %s: %w", hash, err)
	}
	return data, nil
}

func (l *Local) HasNarInfo(ctx context.Context, hash string) (bool, error) {
	_, err := os.Stat(l.narinfoPath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) Nar(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	path, err := l.narPath(url)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("nar %s: %w", url, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("open nar %s: %w", url, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (l *Local) ListNarInfos(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list narinfos: %w", err)
	}
	var hashes []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".narinfo"); ok {
			hashes = append(hashes, name)
		}
	}
	return hashes, nil
}

func (l *Local) ListNars(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.dir, narSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list nars: %w", err)
	}
	var urls []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		urls = append(urls, narSubdir+"/"+e.Name())
	}
	return urls, nil
}

func (l *Local) PutPair(ctx context.Context, hash string, info []byte, narURL string, nar io.Reader) error {
	mu := l.lock(hash)
	mu.Lock()
	defer mu.Unlock()

	narPath, err := l.narPath(narURL)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(narPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp nar: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, nar); err != nil {
		tmp.Close()
		return fmt.Errorf("write nar %s: %w", narURL, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp nar: %w", err)
	}
	if err := os.Rename(tmpName, narPath); err != nil {
		return fmt.Errorf("publish nar %s: %w", narURL, err)
	}

	// The narinfo rename is the publish point: the blob is in place
	// before the metadata that names it becomes visible.
	infoTmp, err := os.CreateTemp(l.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp narinfo: %w", err)
	}
	infoTmpName := infoTmp.Name()
	defer os.Remove(infoTmpName)

	if _, err := infoTmp.Write(info); err != nil {
		infoTmp.Close()
		return fmt.Errorf("write narinfo %s: %w", hash, err)
	}
	if err := infoTmp.Close(); err != nil {
		return fmt.Errorf("close temp narinfo: %w", err)
	}
	if err := os.Rename(infoTmpName, l.narinfoPath(hash)); err != nil {
		return fmt.Errorf("publish narinfo %s: %w", hash, err)
	}
	return nil
}

func (l *Local) lock(hash string) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(hash, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (l *Local) narinfoPath(hash string) string {
	return filepath.Join(l.dir, hash+".narinfo")
}

func (l *Local) narPath(url string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(url))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid nar url %q", url)
	}
	return filepath.Join(l.dir, clean), nil
}
