// Package extract resolves bookmark metadata from a web page.
//
// An [Extractor] fetches a URL, follows HTTP redirects and HTML meta-refresh
// hops to the final page, and resolves five fields through independent
// ordered fallback chains:
//
//   - title: og:title, <title>, twitter:title, first <h1>
//   - description: og:description, meta description, twitter:description,
//     first non-empty paragraph
//   - logo: apple-touch-icon, og:image, favicon
//   - source-code link: structured metadata, header/nav links, footer links,
//     body links, any link on a known code host
//   - documentation link: docs hosts, /docs/ paths, anchor-text hints,
//     known documentation platforms
//
// Each chain is a list of resolver functions tried in order until one yields
// a value. Missing fields are left empty; partial extraction is not an error.
//
// Fetch failures are classified with pkg/errors codes: TRANSIENT_NETWORK for
// DNS failures, refused connections, timeouts, 5xx and 429; PERMANENT_HTTP
// for other 4xx; INVALID_INPUT for non-http(s) URLs.
package extract
