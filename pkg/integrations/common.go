package integrations

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a resource doesn't exist upstream (404).
	ErrNotFound = errors.New("resource not found")

	// ErrGone is returned when a resource was removed upstream (410).
	ErrGone = errors.New("resource gone")

	// ErrConflict is returned for 409 responses (e.g. commits of an empty repository).
	ErrConflict = errors.New("resource conflict")

	// ErrRateLimited is returned for 403 and 429 responses.
	ErrRateLimited = errors.New("rate limited")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("malformed response")
)

// RateLimitError describes a 403/429 answer. It matches [ErrRateLimited].
type RateLimitError struct {
	Status     int // HTTP status (403 or 429)
	RetryAfter int // Seconds until the quota resets, 0 if unknown
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: status %d, retry after %ds", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: status %d", e.Status)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// StatusError is returned for unexpected non-2xx statuses. It matches [ErrNetwork].
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string { return fmt.Sprintf("network error: status %d", e.Status) }

func (e *StatusError) Unwrap() error { return ErrNetwork }

// NewHTTPClient creates an HTTP client with a standard timeout for API requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"ssh://git@github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, ssh:// and git+ prefixes, and removes .git suffixes.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}
