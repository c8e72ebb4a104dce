package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// maxDescriptionRunes bounds descriptions taken from body paragraphs.
const maxDescriptionRunes = 500

// resolver yields one candidate value for a field, or "" to defer to the
// next resolver in its chain.
type resolver func(*page) string

// chain is an ordered list of resolvers; the first non-empty value wins.
type chain []resolver

func (c chain) resolve(p *page) string {
	for _, r := range c {
		if v := r(p); v != "" {
			return v
		}
	}
	return ""
}

var titleChain = chain{
	meta("og:title"),
	titleTag,
	meta("twitter:title"),
	firstText("h1"),
}

var descriptionChain = chain{
	meta("og:description"),
	meta("description"),
	meta("twitter:description"),
	firstParagraph,
}

var logoChain = chain{
	iconLink("apple-touch-icon", "apple-touch-icon-precomposed"),
	absolute(meta("og:image")),
	iconLink("icon"),
}

// meta reads the content of the first <meta> whose name or property equals
// key, ignoring case.
func meta(key string) resolver {
	return func(p *page) string {
		var v string
		p.doc.Find("meta[content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			name := s.AttrOr("property", s.AttrOr("name", ""))
			if !strings.EqualFold(strings.TrimSpace(name), key) {
				return true
			}
			v = clean(s.AttrOr("content", ""))
			return v == ""
		})
		return v
	}
}

func titleTag(p *page) string {
	return clean(p.doc.Find("head title").First().Text())
}

func firstText(selector string) resolver {
	return func(p *page) string {
		var v string
		p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v = clean(s.Text())
			return v == ""
		})
		return v
	}
}

func firstParagraph(p *page) string {
	return truncate(firstText("body p")(p), maxDescriptionRunes)
}

// iconLink matches <link rel> tokens exactly, so "icon" matches
// rel="shortcut icon" but not rel="apple-touch-icon".
func iconLink(rels ...string) resolver {
	return func(p *page) string {
		var v string
		p.doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !hasRel(s, rels...) {
				return true
			}
			v = p.resolveURL(s.AttrOr("href", ""))
			return v == ""
		})
		return v
	}
}

func absolute(r resolver) resolver {
	return func(p *page) string {
		return p.resolveURL(r(p))
	}
}

func hasRel(s *goquery.Selection, rels ...string) bool {
	for _, tok := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
		for _, r := range rels {
			if tok == r {
				return true
			}
		}
	}
	return false
}

// resolveURL resolves ref against the page URL. Only http(s) results are
// returned; fragments are dropped.
func (p *page) resolveURL(ref string) string {
	u := p.parseRef(ref)
	if u == nil {
		return ""
	}
	return u.String()
}

// clean collapses runs of whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
