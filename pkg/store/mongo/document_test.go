package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/matzehuels/refreshd/pkg/refresh"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func keys(d bson.D) []string {
	out := make([]string, len(d))
	for i, e := range d {
		out[i] = e.Key
	}
	return out
}

func TestSetDocFields(t *testing.T) {
	langs := []refresh.Association{{Name: "Go", Source: refresh.SourceSystemSuggested}}
	status := refresh.StatusInaccessible
	p := refresh.Patch{
		Title:                   ptr("T"),
		SourceCodeURL:           &refresh.TaggedURL{Value: "https://github.com/a/b", Source: refresh.SourceSystemSuggested},
		Status:                  &status,
		ConsecutiveFailureCount: ptr(3),
		LastRefreshAt:           &t0,
		Languages:               &langs,
	}
	set := setDoc(p)

	got := keys(set)
	want := p.Fields()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, got[i], want[i])
		}
	}

	m := set.Map()
	if link, ok := m["source_code_url"].(linkDoc); !ok || link.Source != "system_suggested" {
		t.Errorf("source_code_url = %#v", m["source_code_url"])
	}
	if m["status"] != "inaccessible" {
		t.Errorf("status = %v", m["status"])
	}
	if ls, ok := m["languages"].([]assocDoc); !ok || len(ls) != 1 || ls[0].Name != "Go" {
		t.Errorf("languages = %#v", m["languages"])
	}
	if _, ok := m["updated_at"]; ok {
		t.Error("setDoc must not touch updated_at")
	}
}

func TestSetDocEmpty(t *testing.T) {
	if set := setDoc(refresh.Patch{}); len(set) != 0 {
		t.Errorf("setDoc(empty) = %v", set)
	}
}

func TestSetDocClearsAssociations(t *testing.T) {
	empty := []refresh.Association{}
	m := setDoc(refresh.Patch{Licenses: &empty}).Map()
	ls, ok := m["licenses"].([]assocDoc)
	if !ok || ls == nil || len(ls) != 0 {
		t.Errorf("licenses = %#v, want empty non-nil slice", m["licenses"])
	}
}

func TestRecordRoundTrip(t *testing.T) {
	local := time.FixedZone("X", 3600)
	refreshed := t0.Add(time.Hour).In(local)
	in := refresh.Record{
		ID:             5,
		OwnerID:        2,
		URL:            "https://a.example",
		CreatedAt:      t0.In(local),
		Title:          ptr("A"),
		SourceCodeURL:  refresh.TaggedURL{Value: "https://github.com/a/a", Source: refresh.SourceUserSet},
		GitHubStars:    ptr(7),
		LastRefreshAt:  &refreshed,
		JitterFraction: ptr(0.05),
		Languages:      []refresh.Association{{Name: "Go", Order: 0, Source: refresh.SourceSystemSuggested}},
	}
	in.ConsecutiveFailureCount = 1
	doc := fromRecord(in)
	if doc.Status != "active" {
		t.Errorf("default status = %q", doc.Status)
	}
	if doc.CreatedAt.Location() != time.UTC || doc.LastRefreshAt.Location() != time.UTC {
		t.Error("times not normalized to UTC")
	}
	if !doc.UpdatedAt.Equal(doc.CreatedAt) {
		t.Errorf("updated_at = %v, want created_at", doc.UpdatedAt)
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var back bookmarkDoc
	if err := bson.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	out := back.record()
	if out.ID != 5 || out.OwnerID != 2 || out.URL != in.URL {
		t.Errorf("identity = %+v", out)
	}
	if !out.CreatedAt.Equal(t0) || !out.LastRefreshAt.Equal(refreshed) {
		t.Errorf("times = %v %v", out.CreatedAt, out.LastRefreshAt)
	}
	if out.SourceCodeURL != in.SourceCodeURL {
		t.Errorf("SourceCodeURL = %+v", out.SourceCodeURL)
	}
	if out.GitHubStars == nil || *out.GitHubStars != 7 {
		t.Errorf("GitHubStars = %v", out.GitHubStars)
	}
	if out.Description != nil || out.GitHubArchived != nil || out.GitHubLastCommit != nil {
		t.Error("absent optional fields decoded as set")
	}
	if len(out.Languages) != 1 || out.Languages[0].Source != refresh.SourceSystemSuggested {
		t.Errorf("Languages = %+v", out.Languages)
	}
	if out.Licenses != nil {
		t.Errorf("Licenses = %+v, want nil", out.Licenses)
	}
	if out.ConsecutiveFailureCount != 1 {
		t.Errorf("failures = %d", out.ConsecutiveFailureCount)
	}
}

func TestDuePipeline(t *testing.T) {
	p := duePipeline(t0.In(time.FixedZone("X", -7200)))
	if len(p) != 3 {
		t.Fatalf("pipeline has %d stages, want 3", len(p))
	}
	stages := []string{"$match", "$addFields", "$sort"}
	for i, want := range stages {
		d, ok := p[i].(bson.D)
		if !ok || len(d) != 1 || d[0].Key != want {
			t.Errorf("stage %d = %v, want %s", i, p[i], want)
		}
	}

	match := p[0].(bson.D)[0].Value.(bson.D)
	expr := match[0].Value.(bson.D)
	lte := expr[0].Value.(bson.A)
	cutoff, ok := lte[1].(time.Time)
	if !ok || !cutoff.Equal(t0) || cutoff.Location() != time.UTC {
		t.Errorf("cutoff = %v", lte[1])
	}
}
