package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Refresh hooks
	r := NoopRefreshHooks{}
	r.OnTickStart(ctx, "tick-1", 10, 3)
	r.OnTickComplete(ctx, "tick-1", 3, 1, 0, time.Second, nil)
	r.OnRecordComplete(ctx, 42, "TRANSIENT_NETWORK", 2, time.Second)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "github")
	c.OnCacheMiss(ctx, "github")
	c.OnCacheSet(ctx, "github", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "api.github.com", "/repos/owner/repo")
	h.OnResponse(ctx, "GET", "api.github.com", "/repos/owner/repo", 200, time.Second)
	h.OnError(ctx, "GET", "api.github.com", "/repos/owner/repo", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Refresh().(NoopRefreshHooks); !ok {
		t.Error("Refresh() should return NoopRefreshHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	// Set custom hooks
	customRefresh := &testRefreshHooks{}
	SetRefreshHooks(customRefresh)
	if Refresh() != customRefresh {
		t.Error("SetRefreshHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Refresh().(NoopRefreshHooks); !ok {
		t.Error("Reset() should restore NoopRefreshHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testRefreshHooks{}
	SetRefreshHooks(custom)

	// Setting nil should be ignored
	SetRefreshHooks(nil)

	if Refresh() != custom {
		t.Error("SetRefreshHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testRefreshHooks struct{ NoopRefreshHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
