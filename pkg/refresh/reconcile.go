package refresh

import (
	"slices"
	"time"

	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/extract"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
)

// Observation is everything fetched for one record during a refresh.
type Observation struct {
	Page    *extract.Result
	PageErr error

	Repo          *github.Enrichment
	RepoErr       error
	RepoAttempted bool // false when there is no link or enrichment was suppressed
	HasRepoLink   bool

	Catalog []string // License identifiers of the record's owner
}

// Suggestions are detected associations that were not written because the
// record already carries user-set ones of that kind.
type Suggestions struct {
	Languages []string `json:"languages,omitempty"`
	License   string   `json:"license,omitempty"`
}

// IsEmpty reports whether there is nothing to suggest.
func (s Suggestions) IsEmpty() bool {
	return len(s.Languages) == 0 && s.License == ""
}

// Resolution is the outcome of reconciling one observation.
type Resolution struct {
	Patch       Patch
	Suggestions Suggestions
	Failed      bool // primary fetch failed with a counted error
	RepoGone    bool
	RateLimited bool
}

// Reconcile merges obs into rec and returns the fields that changed. It is
// pure; last_refresh_at is left to the caller. Reconciling the same
// observation against the patched record yields an empty patch.
func Reconcile(rec Record, obs Observation, threshold int) Resolution {
	var res Resolution
	p := &res.Patch

	repoOK := obs.RepoAttempted && obs.RepoErr == nil && obs.Repo != nil
	res.RepoGone = errs.Is(obs.RepoErr, errs.ErrCodeRepositoryGone)
	res.RateLimited = errs.Is(obs.RepoErr, errs.ErrCodeRateLimited)
	res.Failed = obs.PageErr != nil && errs.CountsAsFailure(obs.PageErr)

	if page := obs.Page; page != nil && obs.PageErr == nil {
		p.Title = changedText(rec.Title, page.Title)
		p.Logo = changedText(rec.Logo, page.Logo)
		p.SourceCodeURL = changedLink(rec.SourceCodeURL, page.SourceCodeURL)
		p.DocumentationURL = changedLink(rec.DocumentationURL, page.DocumentationURL)
	}
	p.Description = changedText(rec.Description, description(obs, repoOK, res.RepoGone))

	if repoOK {
		reconcileRepo(rec, obs, &res)
	}

	status, failures := nextStatus(rec.Status, rec.ConsecutiveFailureCount, health{
		primaryOK:     obs.PageErr == nil && obs.Page != nil,
		primaryFailed: res.Failed,
		repoOK:        repoOK,
		repoGone:      res.RepoGone,
		hasRepoLink:   obs.HasRepoLink,
	}, threshold)
	if status != rec.Status {
		p.Status = &status
	}
	if failures != rec.ConsecutiveFailureCount {
		p.ConsecutiveFailureCount = &failures
	}
	return res
}

// description prefers the repository's own description over the page's.
// While a linked repository could not be read, the stored value is kept.
func description(obs Observation, repoOK, repoGone bool) string {
	if repoOK && obs.Repo.Description != "" {
		return obs.Repo.Description
	}
	if obs.HasRepoLink && !repoOK && !repoGone {
		return ""
	}
	if obs.Page != nil && obs.PageErr == nil {
		return obs.Page.Description
	}
	return ""
}

func reconcileRepo(rec Record, obs Observation, res *Resolution) {
	repo, p := obs.Repo, &res.Patch

	if rec.GitHubStars == nil || *rec.GitHubStars != repo.Stars {
		p.GitHubStars = ptr(repo.Stars)
	}
	if rec.GitHubArchived == nil || *rec.GitHubArchived != repo.Archived {
		p.GitHubArchived = ptr(repo.Archived)
	}
	if repo.LastCommitAt != nil && !sameTime(rec.GitHubLastCommit, *repo.LastCommitAt) {
		p.GitHubLastCommit = ptr(repo.LastCommitAt.UTC())
	}

	if len(repo.Selected) > 0 {
		if hasUserSet(rec.Languages) {
			if !slices.Equal(names(rec.Languages), repo.Selected) {
				res.Suggestions.Languages = slices.Clone(repo.Selected)
			}
		} else if want := suggested(repo.Selected...); !sameAssociations(rec.Languages, want) {
			p.Languages = &want
		}
	}

	if license, ok := github.MatchLicense(repo.License, obs.Catalog); ok {
		if hasUserSet(rec.Licenses) {
			if !slices.Contains(names(rec.Licenses), license) {
				res.Suggestions.License = license
			}
		} else if want := suggested(license); !sameAssociations(rec.Licenses, want) {
			p.Licenses = &want
		}
	}
}

// changedText returns v when it is non-empty and differs from cur.
func changedText(cur *string, v string) *string {
	if v == "" || (cur != nil && *cur == v) {
		return nil
	}
	return &v
}

// changedLink replaces a suggested or unset link with a differing detected
// value. User-set links are kept.
func changedLink(cur TaggedURL, detected string) *TaggedURL {
	if cur.Source == SourceUserSet || detected == "" {
		return nil
	}
	next := TaggedURL{Value: detected, Source: SourceSystemSuggested}
	if cur == next {
		return nil
	}
	return &next
}

func sameTime(cur *time.Time, v time.Time) bool {
	return cur != nil && cur.Equal(v)
}

func names(as []Association) []string {
	sorted := slices.Clone(as)
	slices.SortStableFunc(sorted, func(a, b Association) int { return a.Order - b.Order })
	out := make([]string, len(sorted))
	for i, a := range sorted {
		out[i] = a.Name
	}
	return out
}
