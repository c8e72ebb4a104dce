package github

import (
	"cmp"
	"slices"
)

// LanguageShare is one entry of a repository's language breakdown.
type LanguageShare struct {
	Name  string  `json:"name"`
	Share float64 `json:"share"` // Percent of bytes, 0-100
}

func shares(bytes map[string]int64) []LanguageShare {
	var total int64
	for _, n := range bytes {
		if n > 0 {
			total += n
		}
	}
	if total == 0 {
		return nil
	}
	out := make([]LanguageShare, 0, len(bytes))
	for name, n := range bytes {
		if n > 0 {
			out = append(out, LanguageShare{Name: name, Share: float64(n) * 100 / float64(total)})
		}
	}
	sortShares(out)
	return out
}

func sortShares(s []LanguageShare) {
	slices.SortFunc(s, func(a, b LanguageShare) int {
		if c := cmp.Compare(b.Share, a.Share); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// SelectLanguages picks the primary languages of a breakdown. The top
// language is always selected; the runner-up only when its share is at
// least half of the top one. A third language is never selected.
func SelectLanguages(langs []LanguageShare) []string {
	if len(langs) == 0 {
		return nil
	}
	sorted := slices.Clone(langs)
	sortShares(sorted)

	top := sorted[0]
	if top.Share <= 0 {
		return nil
	}
	selected := []string{top.Name}
	if len(sorted) > 1 && sorted[1].Share > 0 && sorted[1].Share >= 0.5*top.Share {
		selected = append(selected, sorted[1].Name)
	}
	return selected
}
