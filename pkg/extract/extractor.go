package extract

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/refreshd/pkg/errors"
)

const (
	DefaultMaxBytes       = 2 << 20
	DefaultTimeout        = 20 * time.Second
	DefaultMaxMetaRefresh = 5
	DefaultUserAgent      = "Mozilla/5.0 (compatible; refreshd/1.0; +https://github.com/matzehuels/refreshd)"

	// maxRedirects bounds HTTP redirects per hop.
	maxRedirects = 10
)

// Options configures an Extractor. Zero values select the defaults.
type Options struct {
	MaxBytes       int64         // Body bytes read per hop
	Timeout        time.Duration // Whole fetch, including meta-refresh hops
	MaxMetaRefresh int           // Meta-refresh hops followed
	UserAgent      string
	HTTPClient     *http.Client // Transport override, mainly for tests
}

// Result holds the resolved metadata of one page. Empty strings mean the
// field could not be resolved.
type Result struct {
	RequestedURL     string `json:"requested_url"`
	FinalURL         string `json:"final_url"`
	StatusCode       int    `json:"status_code"`
	Title            string `json:"title,omitempty"`
	Description      string `json:"description,omitempty"`
	Logo             string `json:"logo,omitempty"`
	SourceCodeURL    string `json:"source_code_url,omitempty"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

// Extractor fetches pages and resolves their metadata.
// It is safe for concurrent use.
type Extractor struct {
	opts   Options
	client *http.Client
	logger *log.Logger
}

// New creates an Extractor. A nil logger discards output.
func New(opts Options, logger *log.Logger) *Extractor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxMetaRefresh < 0 {
		opts.MaxMetaRefresh = 0
	} else if opts.MaxMetaRefresh == 0 {
		opts.MaxMetaRefresh = DefaultMaxMetaRefresh
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Extractor{
		opts:   opts,
		client: newHTTPClient(opts.HTTPClient),
		logger: logger,
	}
}

// Extract fetches rawURL and resolves its metadata.
//
// A page that resolved but could not be parsed yields a partial result and a
// nil error; the parse problem is logged. Non-HTML content yields a result
// with only FinalURL and StatusCode set.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Result, error) {
	if err := errs.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	p, err := e.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RequestedURL: rawURL,
		FinalURL:     p.url.String(),
		StatusCode:   p.status,
	}
	if p.doc == nil {
		return res, nil
	}

	res.Title = titleChain.resolve(p)
	res.Description = descriptionChain.resolve(p)
	res.Logo = logoChain.resolve(p)
	res.SourceCodeURL = sourceCodeChain.resolve(p)
	res.DocumentationURL = documentationChain.resolve(p)

	e.logger.Debug("extracted", "url", res.FinalURL,
		"title", res.Title != "", "description", res.Description != "",
		"logo", res.Logo != "", "source", res.SourceCodeURL, "docs", res.DocumentationURL)
	return res, nil
}
