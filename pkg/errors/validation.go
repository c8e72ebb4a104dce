package errors

import (
	"net/url"
	"strings"
	"unicode"
)

const maxURLLength = 2048

// ValidateURL validates a bookmark or repository URL before it is fetched.
//
// The validation rules are intentionally conservative:
//   - No empty URLs
//   - No control characters
//   - Scheme must be http or https
//   - Host must be present
//   - Maximum length of 2048 characters
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if len(rawURL) > maxURLLength {
		return New(ErrCodeInvalidInput, "URL too long (max %d characters)", maxURLLength)
	}

	for _, r := range rawURL {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "URL contains invalid control characters")
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "URL cannot be parsed")
	}

	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme, got %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return New(ErrCodeInvalidInput, "URL is missing a host")
	}

	return nil
}
