// Package httputil provides HTTP utilities shared by the page fetcher and the
// repository API client.
//
// # Overview
//
//   - [Retry]: Automatic retry with exponential backoff
//   - [RetryAfter]: Seconds to wait, read from rate-limit response headers
//
// # Retry
//
// [Retry] re-runs an operation only for errors wrapped in [RetryableError]:
//
//   - Network errors
//   - 5xx server errors
//
// Rate-limit responses are deliberately not retried. The refresh engine
// stops calling the upstream for the rest of the tick instead.
//
//	err := httputil.Retry(ctx, 2, 500*time.Millisecond, func() error {
//	    return client.Get(ctx, url, &v)
//	})
package httputil
