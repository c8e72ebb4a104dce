package refresh

import (
	"slices"
	"time"
)

// Source tells who set a link or association.
type Source int

const (
	SourceUnset Source = iota
	SourceUserSet
	SourceSystemSuggested
)

func (s Source) String() string {
	switch s {
	case SourceUserSet:
		return "user_set"
	case SourceSystemSuggested:
		return "system_suggested"
	default:
		return ""
	}
}

// ParseSource is the inverse of [Source.String]. Unknown values are unset.
func ParseSource(s string) Source {
	switch s {
	case "user_set":
		return SourceUserSet
	case "system_suggested":
		return SourceSystemSuggested
	default:
		return SourceUnset
	}
}

// TaggedURL is a link together with who set it. UserSet links are never
// overwritten by detected values.
type TaggedURL struct {
	Value  string `json:"value" bson:"value"`
	Source Source `json:"source" bson:"source"`
}

// Status is the refresh-relevant state of a bookmark.
type Status string

const (
	StatusActive          Status = "active"
	StatusArchived        Status = "archived"
	StatusInaccessible    Status = "inaccessible"
	StatusRepoUnavailable Status = "repo_unavailable"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusInaccessible, StatusRepoUnavailable:
		return true
	}
	return false
}

// Association links a record to a language or license.
type Association struct {
	Name   string `json:"name" bson:"name"`
	Order  int    `json:"order" bson:"order"`
	Source Source `json:"source" bson:"source"`
}

func hasUserSet(as []Association) bool {
	return slices.ContainsFunc(as, func(a Association) bool { return a.Source == SourceUserSet })
}

func sameAssociations(a, b []Association) bool {
	return slices.EqualFunc(a, b, func(x, y Association) bool {
		return x.Name == y.Name && x.Order == y.Order
	})
}

func suggested(names ...string) []Association {
	out := make([]Association, len(names))
	for i, n := range names {
		out[i] = Association{Name: n, Order: i, Source: SourceSystemSuggested}
	}
	return out
}

// Record is the refresh-relevant projection of a bookmark.
type Record struct {
	ID        int64
	OwnerID   int64
	URL       string
	CreatedAt time.Time

	SourceCodeURL    TaggedURL
	DocumentationURL TaggedURL

	Title       *string
	Description *string
	Logo        *string

	Status Status

	GitHubStars      *int
	GitHubArchived   *bool
	GitHubLastCommit *time.Time

	ConsecutiveFailureCount int
	LastRefreshAt           *time.Time

	// JitterFraction is the stored per-record offset in [-0.2, 0.2]. It
	// applies until the first refresh; after that, or when nil, one is
	// derived from the record id and its base time.
	JitterFraction *float64

	Languages []Association
	Licenses  []Association
}

// Patch is a partial field set written back to the store. Nil fields are
// left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Logo        *string

	SourceCodeURL    *TaggedURL
	DocumentationURL *TaggedURL

	Status *Status

	GitHubStars      *int
	GitHubArchived   *bool
	GitHubLastCommit *time.Time

	ConsecutiveFailureCount *int
	LastRefreshAt           *time.Time

	Languages *[]Association
	Licenses  *[]Association
}

// Column names used by [Patch.Fields].
const (
	FieldTitle                   = "title"
	FieldDescription             = "description"
	FieldLogo                    = "logo"
	FieldSourceCodeURL           = "source_code_url"
	FieldDocumentationURL        = "documentation_url"
	FieldStatus                  = "status"
	FieldGitHubStars             = "github_stars"
	FieldGitHubArchived          = "github_archived"
	FieldGitHubLastCommit        = "github_last_commit"
	FieldConsecutiveFailureCount = "consecutive_failure_count"
	FieldLastRefreshAt           = "last_refresh_at"
	FieldLanguages               = "languages"
	FieldLicenses                = "licenses"
)

// Fields lists the columns p writes, in a stable order.
func (p Patch) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(p.Title != nil, FieldTitle)
	add(p.Description != nil, FieldDescription)
	add(p.Logo != nil, FieldLogo)
	add(p.SourceCodeURL != nil, FieldSourceCodeURL)
	add(p.DocumentationURL != nil, FieldDocumentationURL)
	add(p.Status != nil, FieldStatus)
	add(p.GitHubStars != nil, FieldGitHubStars)
	add(p.GitHubArchived != nil, FieldGitHubArchived)
	add(p.GitHubLastCommit != nil, FieldGitHubLastCommit)
	add(p.ConsecutiveFailureCount != nil, FieldConsecutiveFailureCount)
	add(p.LastRefreshAt != nil, FieldLastRefreshAt)
	add(p.Languages != nil, FieldLanguages)
	add(p.Licenses != nil, FieldLicenses)
	return f
}

// IsEmpty reports whether p writes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Apply returns rec with p applied.
func (p Patch) Apply(rec Record) Record {
	if p.Title != nil {
		rec.Title = ptr(*p.Title)
	}
	if p.Description != nil {
		rec.Description = ptr(*p.Description)
	}
	if p.Logo != nil {
		rec.Logo = ptr(*p.Logo)
	}
	if p.SourceCodeURL != nil {
		rec.SourceCodeURL = *p.SourceCodeURL
	}
	if p.DocumentationURL != nil {
		rec.DocumentationURL = *p.DocumentationURL
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.GitHubStars != nil {
		rec.GitHubStars = ptr(*p.GitHubStars)
	}
	if p.GitHubArchived != nil {
		rec.GitHubArchived = ptr(*p.GitHubArchived)
	}
	if p.GitHubLastCommit != nil {
		rec.GitHubLastCommit = ptr(*p.GitHubLastCommit)
	}
	if p.ConsecutiveFailureCount != nil {
		rec.ConsecutiveFailureCount = *p.ConsecutiveFailureCount
	}
	if p.LastRefreshAt != nil {
		rec.LastRefreshAt = ptr(*p.LastRefreshAt)
	}
	if p.Languages != nil {
		rec.Languages = slices.Clone(*p.Languages)
	}
	if p.Licenses != nil {
		rec.Licenses = slices.Clone(*p.Licenses)
	}
	return rec
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
