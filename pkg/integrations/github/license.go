package github

import "strings"

// MatchLicense resolves a reported license identifier against a catalog.
// Matching is case-insensitive and exact; the catalog's spelling is returned.
// Empty, NOASSERTION and NONE never match.
func MatchLicense(reported string, catalog []string) (string, bool) {
	reported = strings.TrimSpace(reported)
	switch strings.ToUpper(reported) {
	case "", "NOASSERTION", "NONE":
		return "", false
	}
	for _, entry := range catalog {
		if strings.EqualFold(strings.TrimSpace(entry), reported) {
			return entry, true
		}
	}
	return "", false
}
