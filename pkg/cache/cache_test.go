package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "repos/foo/bar", []byte(`{"stars":1}`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, hit, err := c.Get(ctx, "repos/foo/bar")
	if err != nil || !hit {
		t.Fatalf("Get = hit %v, err %v", hit, err)
	}
	if string(data) != `{"stars":1}` {
		t.Errorf("Get data = %s", data)
	}

	if err := c.Delete(ctx, "repos/foo/bar"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "repos/foo/bar"); hit {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpired(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	inner, _ := NewFileCache(t.TempDir())
	scoped := NewScoped(inner, "github:")

	if err := scoped.Set(ctx, "repos/a/b", []byte("x"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, hit, _ := inner.Get(ctx, "github:repos/a/b"); !hit {
		t.Error("inner cache should hold the prefixed key")
	}
	if _, hit, _ := inner.Get(ctx, "repos/a/b"); hit {
		t.Error("inner cache should not hold the bare key")
	}
}

func TestScopedNilInner(t *testing.T) {
	scoped := NewScoped(nil, "p:")
	if err := scoped.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Errorf("Set on nil inner: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, BackendNone, "", "")
	if err != nil {
		t.Fatalf("Open(none): %v", err)
	}
	if _, ok := c.(NullCache); !ok {
		t.Errorf("Open(none) = %T, want NullCache", c)
	}

	c, err = Open(ctx, BackendFile, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Open(file): %v", err)
	}
	if _, ok := c.(*FileCache); !ok {
		t.Errorf("Open(file) = %T, want *FileCache", c)
	}

	if _, err := Open(ctx, "memcached", "", ""); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(memcached) error = %v, want ErrUnknownBackend", err)
	}
}

func TestFileCacheLayout(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	key := "github:repo:acme/widget"
	if err := c.Set(context.Background(), key, []byte(`{}`), time.Hour); err != nil {
		t.Fatal(err)
	}

	h := keyHash(key)
	if len(h) != 64 || keyHash(key) != h || keyHash("other") == h {
		t.Fatalf("keyHash(%q) = %q", key, h)
	}
	if _, err := os.Stat(filepath.Join(dir, h[:2], h[2:]+".json")); err != nil {
		t.Errorf("entry not at hashed path: %v", err)
	}
}
