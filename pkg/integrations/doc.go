// Package integrations provides the shared HTTP client for upstream JSON APIs.
//
// # Overview
//
// The only provider supported today lives in the [github] subpackage; it is
// the repository enrichment client of the refresh engine.
//
// # Client Pattern
//
//	client := integrations.NewClient(c, "github:", time.Hour, headers,
//	    integrations.WithRateLimit(1),
//	    integrations.WithTimeout(10*time.Second))
//	err := client.Get(ctx, url, &v)
//
// The client handles:
//   - Optional response caching via [cache.Cache]
//   - Retry with backoff for network errors and 5xx responses
//   - Client-side pacing with golang.org/x/time/rate
//   - A timeout per call, covering the body read
//
// # Status Classification
//
//   - 200: success
//   - 404: [ErrNotFound]; 410: [ErrGone]; 409: [ErrConflict]
//   - 403, 429: [RateLimitError] (matches [ErrRateLimited]); never retried
//   - 5xx: [StatusError] wrapped in [httputil.RetryableError]
//   - transport failures: [ErrNetwork] wrapped in [httputil.RetryableError]
package integrations
