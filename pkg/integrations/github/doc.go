// Package github provides the repository enrichment client for github.com.
//
// # Overview
//
// The client augments a bookmark whose source-code link points at a GitHub
// repository with stars, archived flag, license, description, primary
// languages and the latest commit date.
//
// # Usage
//
//	client := github.NewClient(github.Options{
//	    Timeout:           10 * time.Second,
//	    RequestsPerSecond: 1,
//	})
//
//	owner, repo, ok := github.ParseRepoURL("https://github.com/pallets/flask")
//	if ok {
//	    e, err := client.Enrich(ctx, owner, repo)
//	    ...
//	}
//
// # Upstream Calls
//
// [Client.Enrich] issues exactly three requests:
//
//   - GET /repos/{owner}/{repo}: stars, archived, license, description
//   - GET /repos/{owner}/{repo}/languages: bytes per language
//   - GET /repos/{owner}/{repo}/commits?per_page=1: latest commit date
//
// A 409 on the commits call (empty repository) leaves LastCommitAt nil.
// Requests are unauthenticated and therefore subject to the anonymous quota;
// a 403 or 429 yields a RATE_LIMITED error carrying the reset delay.
//
// # Language Selection
//
// [SelectLanguages] keeps the top language and the runner-up only when its
// share is at least half of the top share:
//
//	[75 15 10] -> first
//	[50 40 10] -> first, second
//	[60 25 15] -> first
//
// # License Matching
//
// [MatchLicense] matches the reported SPDX identifier case-insensitively
// against a caller-supplied catalog and never invents entries.
package github
