package extract

import (
	"encoding/json"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/matzehuels/refreshd/pkg/integrations"
)

// codeHosts are forges whose URLs look like host/owner/repo.
var codeHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
	"codeberg.org":  true,
	"git.sr.ht":     true,
	"gitea.com":     true,
}

// reservedPaths are first path segments on code hosts that are not owners.
var reservedPaths = map[string]bool{
	"about": true, "explore": true, "features": true, "help": true,
	"login": true, "marketplace": true, "orgs": true, "pricing": true,
	"search": true, "settings": true, "signup": true, "sponsors": true,
	"topics": true, "trending": true, "users": true,
}

// docPlatforms are documentation hosting services, matched by host suffix.
var docPlatforms = []string{
	"readthedocs.io", "gitbook.io", "docs.rs", "pkg.go.dev", "readme.io", "mintlify.app",
}

var (
	sourceHints = []string{"source", "source code", "repository", "github"}
	docHints    = []string{"documentation", "docs", "api reference", "guide"}
)

var sourceCodeChain = chain{
	structuredRepo,
	anchors("header a[href], nav a[href]", isRepoURL, sourceHints, canonicalRepo),
	anchors("footer a[href]", isRepoURL, sourceHints, canonicalRepo),
	anchors("body a[href]", isRepoURL, sourceHints, canonicalRepo),
	anchors("a[href]", onCodeHost, sourceHints, nil),
}

var documentationChain = chain{
	docAnchors(func(u *url.URL, _ string) bool {
		h := strings.ToLower(u.Hostname())
		return strings.Contains(h, "docs.") || strings.Contains(h, "documentation.")
	}),
	docAnchors(func(u *url.URL, _ string) bool {
		path := strings.ToLower(u.Path)
		return strings.Contains(path, "/docs/") || strings.HasSuffix(path, "/docs")
	}),
	docAnchors(func(_ *url.URL, text string) bool {
		return containsAny(text, docHints)
	}),
	docAnchors(func(u *url.URL, _ string) bool {
		h := strings.ToLower(u.Hostname())
		for _, p := range docPlatforms {
			if h == p || strings.HasSuffix(h, "."+p) {
				return true
			}
		}
		return false
	}),
}

// anchors picks a link from selector accepted by match. An anchor whose
// text carries one of hints wins over earlier plain matches.
func anchors(selector string, match func(*url.URL) bool, hints []string, format func(*url.URL) string) resolver {
	return func(p *page) string {
		var first *url.URL
		var hinted *url.URL
		p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			u := p.parseRef(s.AttrOr("href", ""))
			if u == nil || !match(u) {
				return true
			}
			if containsAny(anchorText(s), hints) {
				hinted = u
				return false
			}
			if first == nil {
				first = u
			}
			return true
		})
		pick := hinted
		if pick == nil {
			pick = first
		}
		if pick == nil {
			return ""
		}
		if format != nil {
			return format(pick)
		}
		return pick.String()
	}
}

// docAnchors picks the first link outside the current page accepted by match.
func docAnchors(match func(u *url.URL, text string) bool) resolver {
	return func(p *page) string {
		var v string
		p.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			u := p.parseRef(s.AttrOr("href", ""))
			if u == nil || p.isSelf(u) || !match(u, anchorText(s)) {
				return true
			}
			v = u.String()
			return false
		})
		return v
	}
}

// structuredRepo reads explicit repository declarations: JSON-LD
// codeRepository, go-import meta tags and rel=code-repository/vcs-git links.
func structuredRepo(p *page) string {
	var v string
	p.doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v = p.normalizeRepoRef(codeRepository(s.Text()))
		return v == ""
	})
	if v != "" {
		return v
	}

	p.doc.Find(`meta[name="go-import"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if f := strings.Fields(s.AttrOr("content", "")); len(f) == 3 {
			v = p.normalizeRepoRef(f[2])
		}
		return v == ""
	})
	if v != "" {
		return v
	}

	p.doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if hasRel(s, "code-repository", "vcs-git") {
			v = p.normalizeRepoRef(s.AttrOr("href", ""))
		}
		return v == ""
	})
	return v
}

// codeRepository finds a codeRepository value in a JSON-LD document, which
// may be an object, an array or an @graph container.
func codeRepository(raw string) string {
	var doc any
	if json.Unmarshal([]byte(raw), &doc) != nil {
		return ""
	}
	var walk func(any) string
	walk = func(n any) string {
		switch t := n.(type) {
		case map[string]any:
			if s, ok := t["codeRepository"].(string); ok && s != "" {
				return s
			}
			if g, ok := t["@graph"]; ok {
				return walk(g)
			}
		case []any:
			for _, item := range t {
				if s := walk(item); s != "" {
					return s
				}
			}
		}
		return ""
	}
	return walk(doc)
}

func (p *page) normalizeRepoRef(ref string) string {
	ref = integrations.NormalizeRepoURL(ref)
	if ref == "" {
		return ""
	}
	u := p.parseRef(ref)
	if u == nil {
		return ""
	}
	if isRepoURL(u) {
		return canonicalRepo(u)
	}
	return u.String()
}

// parseRef resolves ref against the page URL, keeping only http(s) targets.
func (p *page) parseRef(ref string) *url.URL {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil
	}
	u, err := p.url.Parse(ref)
	if err != nil || !isWebScheme(u.Scheme) || u.Host == "" {
		return nil
	}
	u.Fragment = ""
	return u
}

func (p *page) isSelf(u *url.URL) bool {
	return strings.EqualFold(u.Host, p.url.Host) &&
		strings.TrimSuffix(u.Path, "/") == strings.TrimSuffix(p.url.Path, "/") &&
		u.RawQuery == p.url.RawQuery
}

func codeHost(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func onCodeHost(u *url.URL) bool {
	return codeHosts[codeHost(u)]
}

// isRepoURL reports whether u points at host/owner/repo on a known code host.
func isRepoURL(u *url.URL) bool {
	if !onCodeHost(u) {
		return false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	return !reservedPaths[strings.ToLower(parts[0])]
}

// canonicalRepo reduces a repository link to https://host/owner/repo.
func canonicalRepo(u *url.URL) string {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return "https://" + codeHost(u) + "/" + parts[0] + "/" + strings.TrimSuffix(parts[1], ".git")
}

func anchorText(s *goquery.Selection) string {
	return strings.ToLower(clean(s.Text() + " " + s.AttrOr("title", "") + " " + s.AttrOr("aria-label", "")))
}

// containsAny reports whether s holds one of phrases as whole words.
func containsAny(s string, phrases []string) bool {
	words := " " + strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ") + " "
	for _, p := range phrases {
		if strings.Contains(words, " "+p+" ") {
			return true
		}
	}
	return false
}
