package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestStoreWriteAndRead(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ab", "cdef")

	entry := &Entry{StatusCode: 200, Headers: map[string]string{"Content-Type": "text/plain"}, Body: []byte("payload")}
	if err := store.Write(context.Background(), path, entry); err != nil {
		t.Fatalf("write error: %v", err)
	}

	exists, err := store.Exists(path)
	if err != nil || !exists {
		t.Fatalf("expected entry to exist, got %v (%v)", exists, err)
	}

	got, err := store.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if got.StatusCode != 200 || string(got.Body) != "payload" || got.Headers["Content-Type"] != "text/plain" {
		t.Fatalf("entry mismatch: %+v", got)
	}
	if _, err := store.LastModified(path); err != nil {
		t.Fatalf("last modified error: %v", err)
	}
}

func TestStoreReadMissing(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "missing")

	if _, err := store.Read(context.Background(), path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	exists, err := store.Exists(path)
	if err != nil || exists {
		t.Fatalf("expected missing entry, got %v (%v)", exists, err)
	}
}

func TestStoreReadCorrupt(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "corrupt")
	if err := os.WriteFile(path, []byte("not an entry"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := store.Read(context.Background(), path)
	var readErr *StorageReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected StorageReadError, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt entry must not be reported as not found")
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ab")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	exists, err := store.Exists(path)
	if err != nil || exists {
		t.Fatalf("directory should not count as entry, got %v (%v)", exists, err)
	}
}

func TestStoreWriteReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ab", "cd")

	for _, body := range []string{"v1", "v2"} {
		if err := store.Write(context.Background(), path, &Entry{StatusCode: 200, Body: []byte(body)}); err != nil {
			t.Fatalf("write %s: %v", body, err)
		}
	}
	got, err := store.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(got.Body) != "v2" {
		t.Fatalf("expected replaced body v2, got %s", got.Body)
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestStoreAbortedWriteKeepsPreviousEntry(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ab", "cd")
	if err := store.Write(context.Background(), path, &Entry{StatusCode: 200, Body: []byte("old")}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Write(ctx, path, &Entry{StatusCode: 200, Body: []byte("new")})
	var writeErr *StorageWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected StorageWriteError, got %v", err)
	}

	got, err := store.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("previous entry should stay readable: %v", err)
	}
	if string(got.Body) != "old" {
		t.Fatalf("expected old body, got %s", got.Body)
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestStoreAbortedFirstWriteLeavesNothing(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ab", "cd")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Write(ctx, path, &Entry{StatusCode: 200, Body: []byte("new")}); err == nil {
		t.Fatalf("expected cancelled write to fail")
	}
	if exists, _ := store.Exists(path); exists {
		t.Fatalf("aborted write must not leave an entry")
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestStoreConcurrentReadersNeverSeePartialEntries(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ab", "cd")
	bodies := map[string]bool{}
	for i := 0; i < 4; i++ {
		body := string(make([]byte, 64*1024+i))
		bodies[body] = true
	}
	if err := store.Write(context.Background(), path, &Entry{StatusCode: 200, Body: make([]byte, 64*1024)}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	var wg sync.WaitGroup
	for body := range bodies {
		body := body
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := store.Write(context.Background(), path, &Entry{StatusCode: 200, Body: []byte(body)}); err != nil {
					t.Errorf("write error: %v", err)
					return
				}
			}
		}()
	}

	errs := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			got, err := store.Read(context.Background(), path)
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
			if !bodies[string(got.Body)] {
				select {
				case errs <- errors.New("observed unexpected body length"):
				default:
				}
				return
			}
		}
	}()
	wg.Wait()

	select {
	case err := <-errs:
		t.Fatalf("reader observed a broken entry: %v", err)
	default:
	}
}

func TestStoreRemove(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "ab", "cd")
	if err := store.Write(context.Background(), path, &Entry{StatusCode: 200, Body: []byte("data")}); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := store.Remove(path); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if err := store.Remove(path); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
	if _, err := store.Read(context.Background(), path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".cache-*"))
	if err != nil {
		t.Fatalf("glob error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
