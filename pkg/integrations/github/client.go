package github

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matzehuels/refreshd/pkg/cache"
	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/httputil"
	"github.com/matzehuels/refreshd/pkg/integrations"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

var repoURLPattern = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?(?:[/?#]|$)`)

// reservedOwners are first path segments on github.com that are not accounts.
var reservedOwners = map[string]bool{
	"about": true, "apps": true, "collections": true, "enterprise": true,
	"features": true, "login": true, "marketplace": true, "orgs": true,
	"pricing": true, "search": true, "settings": true, "sponsors": true,
	"topics": true, "trending": true,
}

// Client provides access to the GitHub API for repository metadata enrichment.
// It handles HTTP requests with optional caching, automatic retries and
// client-side pacing. Requests are unauthenticated.
type Client struct {
	*integrations.Client
	baseURL string
}

// Options configures a Client.
type Options struct {
	BaseURL           string        // API root, DefaultBaseURL when empty
	Timeout           time.Duration // Per call, including the body read
	RequestsPerSecond float64       // Client-side pacing, 0 disables
	UserAgent         string
	Cache             cache.Cache   // nil disables response caching
	CacheTTL          time.Duration // Defaults to cache.TTLRepository
}

// NewClient creates a GitHub API client.
func NewClient(opts Options) *Client {
	base := strings.TrimSuffix(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = cache.TTLRepository
	}

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}

	return &Client{
		Client: integrations.NewClient(opts.Cache, "github:", ttl, headers,
			integrations.WithTimeout(opts.Timeout),
			integrations.WithRateLimit(opts.RequestsPerSecond)),
		baseURL: base,
	}
}

// Enrichment is the repository data gathered by [Client.Enrich].
type Enrichment struct {
	Owner        string          `json:"owner"`
	Repo         string          `json:"repo"`
	Stars        int             `json:"stars"`
	Archived     bool            `json:"archived"`
	License      string          `json:"license,omitempty"` // SPDX identifier as reported
	Description  string          `json:"description,omitempty"`
	LastCommitAt *time.Time      `json:"last_commit_at,omitempty"`
	Languages    []LanguageShare `json:"languages,omitempty"` // Sorted by descending share
	Selected     []string        `json:"selected,omitempty"`  // Result of SelectLanguages
}

// ParseRepoURL extracts owner and repository from a github.com link.
// git@, git://, ssh://, git+ prefixes and .git suffixes are accepted.
func ParseRepoURL(s string) (owner, repo string, ok bool) {
	s = integrations.NormalizeRepoURL(s)
	if strings.HasPrefix(s, "github.com/") || strings.HasPrefix(s, "www.github.com/") {
		s = "https://" + s
	}
	m := repoURLPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	owner, repo = m[1], m[2]
	if reservedOwners[strings.ToLower(owner)] || repo == "." || repo == ".." {
		return "", "", false
	}
	return owner, repo, true
}

// Enrich fetches stars, archived flag, license, description, languages and
// the latest commit date of owner/repo. It issues exactly three API calls
// (fewer when the repository is gone or the quota is exhausted).
//
// Errors carry a code from pkg/errors: REPOSITORY_GONE for 404/410 on the
// repository, RATE_LIMITED for 403/429, PARSE_ERROR for malformed JSON and
// TRANSIENT_NETWORK for everything else.
func (c *Client) Enrich(ctx context.Context, owner, repo string) (*Enrichment, error) {
	var e Enrichment
	err := c.Cached(ctx, owner+"/"+repo, false, &e, func() error {
		return c.enrich(ctx, owner, repo, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) enrich(ctx context.Context, owner, repo string, e *Enrichment) error {
	slug := owner + "/" + repo

	var info repoResponse
	if err := c.call(ctx, fmt.Sprintf("%s/repos/%s", c.baseURL, slug), &info); err != nil {
		return classify(err, slug, "repository")
	}

	var langs map[string]int64
	if err := c.call(ctx, fmt.Sprintf("%s/repos/%s/languages", c.baseURL, slug), &langs); err != nil {
		return classify(err, slug, "languages")
	}

	var commits []commitResponse
	err := c.call(ctx, fmt.Sprintf("%s/repos/%s/commits?per_page=1", c.baseURL, slug), &commits)
	if err != nil && !errors.Is(err, integrations.ErrConflict) {
		return classify(err, slug, "commits")
	}

	*e = Enrichment{
		Owner:       owner,
		Repo:        repo,
		Stars:       info.Stars,
		Archived:    info.Archived,
		Description: strings.TrimSpace(info.Description),
		Languages:   shares(langs),
	}
	if info.License != nil {
		e.License = info.License.SPDXID
	}
	if len(commits) > 0 {
		e.LastCommitAt = commits[0].date()
	}
	e.Selected = SelectLanguages(e.Languages)
	return nil
}

// call issues one GET, retrying network errors and 5xx responses.
func (c *Client) call(ctx context.Context, url string, v any) error {
	return httputil.RetryWithBackoff(ctx, func() error {
		return c.Get(ctx, url, v)
	})
}

func classify(err error, slug, endpoint string) error {
	var rl *integrations.RateLimitError
	switch {
	case errors.As(err, &rl):
		return &errs.RateLimitedError{
			RetryAfter: rl.RetryAfter,
			Message:    fmt.Sprintf("github %s %s: status %d", endpoint, slug, rl.Status),
		}
	case errors.Is(err, integrations.ErrNotFound), errors.Is(err, integrations.ErrGone):
		return errs.Wrap(errs.ErrCodeRepositoryGone, err, "github %s %s", endpoint, slug)
	case errors.Is(err, integrations.ErrDecode):
		return errs.Wrap(errs.ErrCodeParse, err, "github %s %s", endpoint, slug)
	default:
		return errs.Wrap(errs.ErrCodeTransientNetwork, err, "github %s %s", endpoint, slug)
	}
}

type repoResponse struct {
	Stars       int    `json:"stargazers_count"`
	Archived    bool   `json:"archived"`
	Description string `json:"description"`
	License     *struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

type commitResponse struct {
	Commit struct {
		Committer *struct {
			Date *time.Time `json:"date"`
		} `json:"committer"`
		Author *struct {
			Date *time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

func (c commitResponse) date() *time.Time {
	if c.Commit.Committer != nil && c.Commit.Committer.Date != nil {
		return c.Commit.Committer.Date
	}
	if c.Commit.Author != nil {
		return c.Commit.Author.Date
	}
	return nil
}
