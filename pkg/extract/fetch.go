package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/observability"
)

var errTooManyRedirects = fmt.Errorf("stopped after %d redirects", maxRedirects)

// page is one fetched document. doc is nil for non-HTML or unparseable bodies.
type page struct {
	url    *url.URL
	status int
	doc    *goquery.Document
}

func newHTTPClient(base *http.Client) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}
	return c
}

// fetch follows meta-refresh hops until the final page.
func (e *Extractor) fetch(ctx context.Context, target string) (*page, error) {
	for hop := 0; ; hop++ {
		p, refresh, err := e.fetchOnce(ctx, target)
		if err != nil {
			return nil, err
		}
		if refresh == "" || hop >= e.opts.MaxMetaRefresh {
			return p, nil
		}
		next, err := p.url.Parse(refresh)
		if err != nil || !isWebScheme(next.Scheme) {
			return p, nil
		}
		next.Fragment = ""
		if next.String() == p.url.String() {
			return p, nil
		}
		e.logger.Debug("meta refresh", "from", p.url.String(), "to", next.String(), "hop", hop+1)
		target = next.String()
	}
}

func (e *Extractor) fetchOnce(ctx context.Context, target string) (*page, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, "", errs.Wrap(errs.ErrCodeInvalidInput, err, "build request for %s", target)
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := e.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, "", classifyTransport(err, target)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", errs.FromHTTPStatus(resp.StatusCode, target)
	}

	p := &page{url: resp.Request.URL, status: resp.StatusCode}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return p, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.opts.MaxBytes))
	if err != nil {
		if len(body) == 0 {
			return nil, "", classifyTransport(err, target)
		}
		e.logger.Info("partial body", "url", p.url.String(), "kind", errs.ErrCodeParse, "bytes", len(body), "err", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("parse failed", "url", p.url.String(), "kind", errs.ErrCodeParse, "err", err)
		return p, "", nil
	}
	p.doc = doc
	return p, metaRefresh(doc), nil
}

func classifyTransport(err error, target string) error {
	if errors.Is(err, errTooManyRedirects) {
		return errs.Wrap(errs.ErrCodePermanentHTTP, err, "fetch %s", target)
	}

	reason := "network error"
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		reason = "timeout"
	case errors.As(err, &dnsErr):
		reason = "dns lookup failed"
	case errors.Is(err, syscall.ECONNREFUSED):
		reason = "connection refused"
	}
	return errs.Wrap(errs.ErrCodeTransientNetwork, err, "fetch %s: %s", target, reason)
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func isWebScheme(s string) bool {
	return strings.EqualFold(s, "http") || strings.EqualFold(s, "https")
}

// metaRefresh returns the target of <meta http-equiv="refresh">, if any.
func metaRefresh(doc *goquery.Document) string {
	var target string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("http-equiv", "")), "refresh") {
			return true
		}
		target = parseRefresh(s.AttrOr("content", ""))
		return target == ""
	})
	return target
}

// parseRefresh extracts the URL of a refresh directive like `0; url='/next'`.
func parseRefresh(content string) string {
	_, rest, ok := strings.Cut(content, ";")
	if !ok {
		_, rest, ok = strings.Cut(content, ",")
		if !ok {
			return ""
		}
	}
	rest = strings.TrimSpace(rest)
	if len(rest) >= 4 && strings.EqualFold(rest[:3], "url") {
		rest = strings.TrimSpace(rest[3:])
		if strings.HasPrefix(rest, "=") {
			rest = strings.TrimSpace(rest[1:])
		}
	}
	return strings.TrimSpace(strings.Trim(rest, `"'`))
}
