package refresh

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/extract"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
)

// scenarioRecord is a bookmark created at t0 whose stored data matches what
// the fakes report, except for the star count.
func scenarioRecord() Record {
	commit := t0.Add(-48 * time.Hour)
	return Record{
		ID:             42,
		OwnerID:        7,
		URL:            "https://widget.dev",
		CreatedAt:      t0,
		JitterFraction: ptr(0.10),
		Title:          ptr("Widget"),
		Description:    ptr("Widgets for everyone"),
		SourceCodeURL:  TaggedURL{Value: "https://github.com/acme/widget", Source: SourceSystemSuggested},
		Status:         StatusActive,
		GitHubStars:    ptr(100),
		GitHubArchived: ptr(false),

		GitHubLastCommit: &commit,
		Languages:        suggested("Go"),
		Licenses:         suggested("mit"),
	}
}

func scenarioFakes() (*fakePages, *fakeRepos) {
	commit := t0.Add(-48 * time.Hour)
	pages := &fakePages{results: map[string]*extract.Result{
		"https://widget.dev": {
			RequestedURL:  "https://widget.dev",
			FinalURL:      "https://widget.dev",
			StatusCode:    200,
			Title:         "Widget",
			Description:   "Widgets for everyone",
			SourceCodeURL: "https://github.com/acme/widget",
		},
	}}
	repos := &fakeRepos{results: map[string]*github.Enrichment{
		"acme/widget": {
			Owner:        "acme",
			Repo:         "widget",
			Stars:        120,
			License:      "MIT",
			LastCommitAt: &commit,
			Selected:     []string{"Go"},
		},
	}}
	return pages, repos
}

func TestEngineScenarioOnlyStarsAndStamp(t *testing.T) {
	rec := scenarioRecord()
	if due := DueAt(rec, 30, 20); !due.Equal(t0.Add(33 * day)) {
		t.Fatalf("DueAt() = %v, want T0+33d", due)
	}

	store := newMemStore(rec)
	store.catalog = []string{"mit", "Apache-2.0"}
	pages, repos := scenarioFakes()
	now := t0.Add(33*day + time.Hour)

	sel := NewSelector(store, DefaultPolicy())
	engine := NewEngine(pages, repos, store, DefaultPolicy(), nil, WithClock(fixedClock(now)), WithCatalog(store))
	sched := NewScheduler(sel, engine, DefaultPolicy(), SchedulerOptions{}, nil)
	sched.now = fixedClock(now)

	st, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error: %v", err)
	}
	if st.RecordsProcessed != 1 {
		t.Fatalf("RecordsProcessed = %d, want 1", st.RecordsProcessed)
	}

	patch, ok := store.lastWrite(42)
	if !ok {
		t.Fatal("record was not written")
	}
	want := []string{FieldGitHubStars, FieldLastRefreshAt}
	if got := patch.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("written fields = %v, want %v", got, want)
	}
	got := store.get(42)
	if deref(got.GitHubStars) != 120 || !got.LastRefreshAt.Equal(now) {
		t.Errorf("stars=%v last_refresh_at=%v", got.GitHubStars, got.LastRefreshAt)
	}
	if due := DueAt(got, 30, 20); !due.Equal(now.Add(33 * day)) {
		t.Errorf("next due = %v, want %v", due, now.Add(33*day))
	}
}

func TestEngineNotDueBeforeJitteredTime(t *testing.T) {
	store := newMemStore(scenarioRecord())
	sel := NewSelector(store, DefaultPolicy())

	set, err := sel.Due(context.Background(), t0.Add(33*day-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Records) != 0 {
		t.Errorf("record due %v early", time.Minute)
	}
}

func TestEngineRepoGoneKeepsStars(t *testing.T) {
	rec := scenarioRecord()
	store := newMemStore(rec)
	pages, _ := scenarioFakes()
	repos := &fakeRepos{err: gone()}

	out := NewEngine(pages, repos, store, DefaultPolicy(), nil).Refresh(context.Background(), rec, nil)
	if out.Failed {
		t.Error("Failed = true for a reachable page")
	}

	got := store.get(42)
	if got.Status != StatusRepoUnavailable {
		t.Errorf("status = %s, want repo_unavailable", got.Status)
	}
	if deref(got.GitHubStars) != 100 {
		t.Errorf("stars = %v, want 100 retained", got.GitHubStars)
	}
	if got.LastRefreshAt == nil {
		t.Error("last_refresh_at not stamped")
	}
}

func TestEngineRateLimitSuppresses(t *testing.T) {
	rec := scenarioRecord()
	store := newMemStore(rec)
	pages, _ := scenarioFakes()
	repos := &fakeRepos{err: &errs.RateLimitedError{RetryAfter: 60}}
	engine := NewEngine(pages, repos, store, DefaultPolicy(), nil)

	var suppress atomic.Bool
	out := engine.Refresh(context.Background(), rec, &suppress)
	if !out.RateLimited || !suppress.Load() {
		t.Fatalf("RateLimited=%v suppress=%v, want both set", out.RateLimited, suppress.Load())
	}
	if out.Failed {
		t.Error("rate limiting counted as failure")
	}
	if store.get(42).LastRefreshAt != nil {
		t.Error("rate-limited record was stamped and would not stay due")
	}

	out = engine.Refresh(context.Background(), rec, &suppress)
	if repos.callCount() != 1 {
		t.Errorf("enrichment calls = %d, want 1 while suppressed", repos.callCount())
	}
	if !out.RateLimited {
		t.Error("suppressed refresh not reported as rate limited")
	}
	if pages.calls.Load() != 2 {
		t.Errorf("page fetches = %d, want 2", pages.calls.Load())
	}
}

func TestEngineRateLimitedRunDoesNotCountPageFailure(t *testing.T) {
	rec := scenarioRecord()
	rec.ConsecutiveFailureCount = 2
	store := newMemStore(rec)
	pages := &fakePages{errs: map[string]error{"https://widget.dev": transient()}}
	repos := &fakeRepos{err: &errs.RateLimitedError{RetryAfter: 60}}
	engine := NewEngine(pages, repos, store, DefaultPolicy(), nil)

	var suppress atomic.Bool
	for range 3 {
		out := engine.Refresh(context.Background(), store.get(42), &suppress)
		if !out.RateLimited {
			t.Fatal("RateLimited = false")
		}
	}

	got := store.get(42)
	if got.ConsecutiveFailureCount != 2 || got.Status != StatusActive {
		t.Errorf("counter=%d status=%s, want 2 and active", got.ConsecutiveFailureCount, got.Status)
	}
	if got.LastRefreshAt != nil {
		t.Error("rate-limited record was stamped")
	}
}

func TestEngineStampsFailures(t *testing.T) {
	rec := scenarioRecord()
	store := newMemStore(rec)
	pages := &fakePages{errs: map[string]error{"https://widget.dev": transient()}}
	repos := &fakeRepos{err: transient()}
	now := t0.Add(40 * day)

	out := NewEngine(pages, repos, store, DefaultPolicy(), nil, WithClock(fixedClock(now))).Refresh(context.Background(), rec, nil)
	if !out.Failed || !errs.Is(out.Err, errs.ErrCodeTransientNetwork) {
		t.Errorf("Failed=%v Err=%v", out.Failed, out.Err)
	}
	got := store.get(42)
	if got.ConsecutiveFailureCount != 1 || !got.LastRefreshAt.Equal(now) {
		t.Errorf("counter=%d last_refresh_at=%v", got.ConsecutiveFailureCount, got.LastRefreshAt)
	}
	if deref(got.GitHubStars) != 100 {
		t.Error("github fields changed on failure")
	}
}

func TestEngineStoreError(t *testing.T) {
	rec := scenarioRecord()
	store := newMemStore(rec)
	store.writeErr = errors.New("disk full")
	pages, repos := scenarioFakes()

	out := NewEngine(pages, repos, store, DefaultPolicy(), nil).Refresh(context.Background(), rec, nil)
	if !errs.Is(out.Err, errs.ErrCodeStore) || !out.Failed {
		t.Errorf("Err=%v Failed=%v, want STORE_ERROR", out.Err, out.Failed)
	}
	if got := store.get(42); deref(got.GitHubStars) != 100 || got.LastRefreshAt != nil {
		t.Error("failed write changed the record")
	}
}

func TestEngineNoRepoLink(t *testing.T) {
	rec := Record{ID: 1, URL: "https://blog.example.com", CreatedAt: t0, Status: StatusActive}
	store := newMemStore(rec)
	pages := &fakePages{}
	repos := &fakeRepos{}

	NewEngine(pages, repos, store, DefaultPolicy(), nil).Refresh(context.Background(), rec, nil)
	if repos.callCount() != 0 {
		t.Errorf("enrichment called %d times without a repository link", repos.callCount())
	}
}

func TestRepoLink(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		page *extract.Result
		want string
	}{
		{
			name: "user-set link wins",
			rec:  Record{SourceCodeURL: TaggedURL{Value: "https://github.com/user/set", Source: SourceUserSet}},
			page: &extract.Result{SourceCodeURL: "https://github.com/detected/repo"},
			want: "user/set",
		},
		{
			name: "user-set non-repository link disables enrichment",
			rec:  Record{URL: "https://github.com/a/b", SourceCodeURL: TaggedURL{Value: "https://sr.ht/~me/x", Source: SourceUserSet}},
			want: "",
		},
		{
			name: "detected link",
			rec:  Record{SourceCodeURL: TaggedURL{Value: "https://github.com/old/repo", Source: SourceSystemSuggested}},
			page: &extract.Result{SourceCodeURL: "https://github.com/detected/repo"},
			want: "detected/repo",
		},
		{
			name: "stored suggestion when page failed",
			rec:  Record{SourceCodeURL: TaggedURL{Value: "https://github.com/old/repo", Source: SourceSystemSuggested}},
			want: "old/repo",
		},
		{
			name: "bookmark is a repository",
			rec:  Record{URL: "https://github.com/acme/tool"},
			want: "acme/tool",
		},
		{name: "none", rec: Record{URL: "https://example.com"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, ok := repoLink(tt.rec, tt.page)
			got := ""
			if ok {
				got = owner + "/" + repo
			}
			if got != tt.want {
				t.Errorf("repoLink() = %q, want %q", got, tt.want)
			}
		})
	}
}
