package refresh

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/extract"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
	"github.com/matzehuels/refreshd/pkg/observability"
)

// writeTimeout bounds a store write, independent of the record's fetch budget.
const writeTimeout = 10 * time.Second

// PageExtractor resolves web metadata for a URL.
type PageExtractor interface {
	Extract(ctx context.Context, url string) (*extract.Result, error)
}

// Enricher fetches repository data.
type Enricher interface {
	Enrich(ctx context.Context, owner, repo string) (*github.Enrichment, error)
}

// Outcome summarizes one record refresh.
type Outcome struct {
	ID          int64
	Patch       Patch
	Suggestions Suggestions
	Failed      bool  // primary fetch failed or the write failed
	RateLimited bool  // enrichment was refused or suppressed; the record stays due
	Err         error // first classified error, if any
	Duration    time.Duration
}

// Engine refreshes single records: fetch, enrich, reconcile, write.
type Engine struct {
	pages   PageExtractor
	repos   Enricher
	store   Store
	catalog Catalog
	policy  Policy
	logger  *log.Logger
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithCatalog sets the license catalog. Without one no license is matched.
func WithCatalog(c Catalog) EngineOption {
	return func(e *Engine) { e.catalog = c }
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(pages PageExtractor, repos Enricher, store Store, policy Policy, logger *log.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	e := &Engine{
		pages:  pages,
		repos:  repos,
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh runs one refresh of rec. When suppress is set, enrichment is
// skipped; a rate-limited answer sets it for the callers that share it.
func (e *Engine) Refresh(ctx context.Context, rec Record, suppress *atomic.Bool) Outcome {
	start := e.now()
	logger := e.logger.With("id", rec.ID)
	if suppress == nil {
		suppress = new(atomic.Bool)
	}

	var obs Observation
	obs.Page, obs.PageErr = e.pages.Extract(ctx, rec.URL)
	if obs.PageErr != nil {
		logFailure(logger, "page fetch failed", obs.PageErr, "url", rec.URL)
	}

	owner, repo, ok := repoLink(rec, obs.Page)
	obs.HasRepoLink = ok
	suppressed := false
	if ok {
		if suppress.Load() {
			suppressed = true
			logger.Debug("enrichment suppressed", "repo", owner+"/"+repo, "kind", errs.ErrCodeRateLimited)
		} else {
			obs.RepoAttempted = true
			obs.Repo, obs.RepoErr = e.repos.Enrich(ctx, owner, repo)
			if errs.Is(obs.RepoErr, errs.ErrCodeRateLimited) {
				suppress.Store(true)
			}
			if obs.RepoErr != nil {
				logFailure(logger, "enrichment failed", obs.RepoErr, "repo", owner+"/"+repo)
			}
		}
	}

	if obs.Repo != nil && obs.Repo.License != "" && e.catalog != nil {
		catalog, err := e.catalog.ListForOwner(ctx, rec.OwnerID)
		if err != nil {
			logFailure(logger, "license catalog unavailable", errs.Wrap(errs.ErrCodeStore, err, "list licenses"))
		}
		obs.Catalog = catalog
	}

	res := Reconcile(rec, obs, e.policy.FailureThreshold)
	out := Outcome{
		ID:          rec.ID,
		Patch:       res.Patch,
		Suggestions: res.Suggestions,
		Failed:      res.Failed,
		RateLimited: suppressed || res.RateLimited,
		Err:         firstErr(obs.PageErr, obs.RepoErr),
	}
	if out.RateLimited {
		// The record stays due and is retried next tick, so this run does
		// not count toward the failure threshold.
		out.Patch.Status = nil
		out.Patch.ConsecutiveFailureCount = nil
	} else {
		now := e.now().UTC()
		out.Patch.LastRefreshAt = &now
	}
	if !res.Suggestions.IsEmpty() {
		logger.Info("suggestions", "languages", res.Suggestions.Languages, "license", res.Suggestions.License)
	}

	if !out.Patch.IsEmpty() {
		logger.Debug("patch", "fields", out.Patch.Fields())
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		err := e.store.Write(wctx, rec.ID, out.Patch)
		cancel()
		if err != nil {
			err = errs.Wrap(errs.ErrCodeStore, err, "write record %d", rec.ID)
			logFailure(logger, "write failed", err)
			out.Failed = true
			out.Err = err
			out.Patch = Patch{}
		}
	}

	out.Duration = e.now().Sub(start)
	code := string(errs.GetCode(out.Err))
	observability.Refresh().OnRecordComplete(ctx, rec.ID, code, len(out.Patch.Fields()), out.Duration)
	if code == "" {
		code = "ok"
	}
	logger.Info("refreshed", "url", rec.URL, "kind", code, "fields", len(out.Patch.Fields()), "duration", out.Duration)
	return out
}

// repoLink picks the repository to enrich: a user-set source link, the
// detected one, the stored suggestion, then the page itself.
func repoLink(rec Record, page *extract.Result) (owner, repo string, ok bool) {
	candidates := make([]string, 0, 4)
	if rec.SourceCodeURL.Source == SourceUserSet {
		candidates = append(candidates, rec.SourceCodeURL.Value)
	} else {
		if page != nil {
			candidates = append(candidates, page.SourceCodeURL)
		}
		candidates = append(candidates, rec.SourceCodeURL.Value)
		if page != nil {
			candidates = append(candidates, page.FinalURL)
		}
		candidates = append(candidates, rec.URL)
	}
	for _, c := range candidates {
		if owner, repo, ok = github.ParseRepoURL(c); ok {
			return owner, repo, true
		}
	}
	return "", "", false
}

// logFailure logs err with its code: permanent failures as warnings, store
// failures as errors, the rest as info.
func logFailure(logger *log.Logger, msg string, err error, kv ...any) {
	code := errs.GetCode(err)
	kv = append(kv, "kind", code, "err", err)
	switch code {
	case errs.ErrCodePermanentHTTP, errs.ErrCodeInvalidInput, errs.ErrCodeRepositoryGone:
		logger.Warn(msg, kv...)
	case errs.ErrCodeStore, errs.ErrCodeInternal:
		logger.Error(msg, kv...)
	default:
		logger.Info(msg, kv...)
	}
}

func firstErr(errList ...error) error {
	for _, err := range errList {
		if err != nil {
			return err
		}
	}
	return nil
}
