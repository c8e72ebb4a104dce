package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/matzehuels/refreshd/pkg/refresh"
)

type linkDoc struct {
	Value  string `bson:"value"`
	Source string `bson:"source"`
}

type assocDoc struct {
	Name   string `bson:"name"`
	Order  int    `bson:"order"`
	Source string `bson:"source"`
}

type bookmarkDoc struct {
	ID               int64      `bson:"_id"`
	OwnerID          int64      `bson:"owner_id"`
	URL              string     `bson:"url"`
	Title            *string    `bson:"title,omitempty"`
	Description      *string    `bson:"description,omitempty"`
	Logo             *string    `bson:"logo,omitempty"`
	SourceCodeURL    linkDoc    `bson:"source_code_url"`
	DocumentationURL linkDoc    `bson:"documentation_url"`
	Status           string     `bson:"status"`
	GitHubStars      *int       `bson:"github_stars,omitempty"`
	GitHubArchived   *bool      `bson:"github_archived,omitempty"`
	GitHubLastCommit *time.Time `bson:"github_last_commit,omitempty"`
	Failures         int        `bson:"consecutive_failure_count"`
	LastRefreshAt    *time.Time `bson:"last_refresh_at,omitempty"`
	JitterFraction   *float64   `bson:"jitter_fraction,omitempty"`
	Languages        []assocDoc `bson:"languages"`
	Licenses         []assocDoc `bson:"licenses"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

type licenseDoc struct {
	OwnerID    int64  `bson:"owner_id"`
	Identifier string `bson:"identifier"`
}

func fromLink(l refresh.TaggedURL) linkDoc {
	return linkDoc{Value: l.Value, Source: l.Source.String()}
}

func (l linkDoc) record() refresh.TaggedURL {
	return refresh.TaggedURL{Value: l.Value, Source: refresh.ParseSource(l.Source)}
}

func fromAssociations(as []refresh.Association) []assocDoc {
	out := make([]assocDoc, len(as))
	for i, a := range as {
		out[i] = assocDoc{Name: a.Name, Order: a.Order, Source: a.Source.String()}
	}
	return out
}

func toAssociations(ds []assocDoc) []refresh.Association {
	if len(ds) == 0 {
		return nil
	}
	out := make([]refresh.Association, len(ds))
	for i, d := range ds {
		out[i] = refresh.Association{Name: d.Name, Order: d.Order, Source: refresh.ParseSource(d.Source)}
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromRecord(rec refresh.Record) bookmarkDoc {
	status := rec.Status
	if status == "" {
		status = refresh.StatusActive
	}
	return bookmarkDoc{
		ID:               rec.ID,
		OwnerID:          rec.OwnerID,
		URL:              rec.URL,
		Title:            rec.Title,
		Description:      rec.Description,
		Logo:             rec.Logo,
		SourceCodeURL:    fromLink(rec.SourceCodeURL),
		DocumentationURL: fromLink(rec.DocumentationURL),
		Status:           string(status),
		GitHubStars:      rec.GitHubStars,
		GitHubArchived:   rec.GitHubArchived,
		GitHubLastCommit: utc(rec.GitHubLastCommit),
		Failures:         rec.ConsecutiveFailureCount,
		LastRefreshAt:    utc(rec.LastRefreshAt),
		JitterFraction:   rec.JitterFraction,
		Languages:        fromAssociations(rec.Languages),
		Licenses:         fromAssociations(rec.Licenses),
		CreatedAt:        rec.CreatedAt.UTC(),
		UpdatedAt:        rec.CreatedAt.UTC(),
	}
}

func (d bookmarkDoc) record() refresh.Record {
	return refresh.Record{
		ID:                      d.ID,
		OwnerID:                 d.OwnerID,
		URL:                     d.URL,
		CreatedAt:               d.CreatedAt.UTC(),
		SourceCodeURL:           d.SourceCodeURL.record(),
		DocumentationURL:        d.DocumentationURL.record(),
		Title:                   d.Title,
		Description:             d.Description,
		Logo:                    d.Logo,
		Status:                  refresh.Status(d.Status),
		GitHubStars:             d.GitHubStars,
		GitHubArchived:          d.GitHubArchived,
		GitHubLastCommit:        utc(d.GitHubLastCommit),
		ConsecutiveFailureCount: d.Failures,
		LastRefreshAt:           utc(d.LastRefreshAt),
		JitterFraction:          d.JitterFraction,
		Languages:               toAssociations(d.Languages),
		Licenses:                toAssociations(d.Licenses),
	}
}

// duePipeline selects bookmarks whose refresh base is at or before before,
// ordered by that base and then id.
func duePipeline(before time.Time) bson.A {
	base := bson.D{{Key: "$ifNull", Value: bson.A{"$last_refresh_at", "$created_at"}}}
	return bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$lte", Value: bson.A{base, before.UTC()}},
		}}}}},
		bson.D{{Key: "$addFields", Value: bson.D{{Key: "refresh_base", Value: base}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "refresh_base", Value: 1}, {Key: "_id", Value: 1}}}},
	}
}

// setDoc translates p into a $set document. updated_at is never included.
func setDoc(p refresh.Patch) bson.D {
	var set bson.D
	add := func(key string, v any) {
		set = append(set, bson.E{Key: key, Value: v})
	}
	if p.Title != nil {
		add(refresh.FieldTitle, *p.Title)
	}
	if p.Description != nil {
		add(refresh.FieldDescription, *p.Description)
	}
	if p.Logo != nil {
		add(refresh.FieldLogo, *p.Logo)
	}
	if p.SourceCodeURL != nil {
		add(refresh.FieldSourceCodeURL, fromLink(*p.SourceCodeURL))
	}
	if p.DocumentationURL != nil {
		add(refresh.FieldDocumentationURL, fromLink(*p.DocumentationURL))
	}
	if p.Status != nil {
		add(refresh.FieldStatus, string(*p.Status))
	}
	if p.GitHubStars != nil {
		add(refresh.FieldGitHubStars, *p.GitHubStars)
	}
	if p.GitHubArchived != nil {
		add(refresh.FieldGitHubArchived, *p.GitHubArchived)
	}
	if p.GitHubLastCommit != nil {
		add(refresh.FieldGitHubLastCommit, p.GitHubLastCommit.UTC())
	}
	if p.ConsecutiveFailureCount != nil {
		add(refresh.FieldConsecutiveFailureCount, *p.ConsecutiveFailureCount)
	}
	if p.LastRefreshAt != nil {
		add(refresh.FieldLastRefreshAt, p.LastRefreshAt.UTC())
	}
	if p.Languages != nil {
		add(refresh.FieldLanguages, fromAssociations(*p.Languages))
	}
	if p.Licenses != nil {
		add(refresh.FieldLicenses, fromAssociations(*p.Licenses))
	}
	return set
}
