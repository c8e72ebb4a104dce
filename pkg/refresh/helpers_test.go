package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/extract"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// memStore is an in-memory Store and Catalog.
type memStore struct {
	mu       sync.Mutex
	records  map[int64]Record
	writes   map[int64][]Patch
	catalog  []string
	readErr  error
	writeErr error
}

func newMemStore(recs ...Record) *memStore {
	s := &memStore{records: map[int64]Record{}, writes: map[int64][]Patch{}}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *memStore) ReadDue(_ context.Context, before time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []Record
	for _, r := range s.records {
		if !baseTime(r).After(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Write(_ context.Context, id int64, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	rec, ok := s.records[id]
	if !ok {
		return errors.New("no such record")
	}
	s.records[id] = p.Apply(rec)
	s.writes[id] = append(s.writes[id], p)
	return nil
}

func (s *memStore) ListForOwner(context.Context, int64) ([]string, error) {
	return s.catalog, nil
}

func (s *memStore) get(id int64) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

func (s *memStore) lastWrite(id int64) (Patch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.writes[id]
	if len(w) == 0 {
		return Patch{}, false
	}
	return w[len(w)-1], true
}

// fakePages serves fixed extraction results per URL.
type fakePages struct {
	results map[string]*extract.Result
	errs    map[string]error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakePages) Extract(ctx context.Context, url string) (*extract.Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.ErrCodeTransientNetwork, ctx.Err(), "fetch %s: timeout", url)
		case <-time.After(f.delay):
		}
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if r, ok := f.results[url]; ok {
		return r, nil
	}
	return &extract.Result{RequestedURL: url, FinalURL: url, StatusCode: 200}, nil
}

// fakeRepos serves fixed enrichment results per owner/repo.
type fakeRepos struct {
	mu      sync.Mutex
	results map[string]*github.Enrichment
	err     error
	calls   []string
}

func (f *fakeRepos) Enrich(_ context.Context, owner, repo string) (*github.Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, owner+"/"+repo)
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.results[owner+"/"+repo]; ok {
		return e, nil
	}
	return nil, errs.New(errs.ErrCodeRepositoryGone, "github repository %s/%s", owner, repo)
}

func (f *fakeRepos) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func gone() error {
	return errs.New(errs.ErrCodeRepositoryGone, "github repository a/b")
}

func transient() error {
	return errs.New(errs.ErrCodeTransientNetwork, "fetch: timeout")
}
