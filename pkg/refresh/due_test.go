package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "github.com/matzehuels/refreshd/pkg/errors"
)

func TestDueAtFormula(t *testing.T) {
	refreshed := t0.Add(10 * day)
	tests := []struct {
		name     string
		rec      Record
		noJitter bool
		want     time.Time
	}{
		{
			name: "created, positive jitter",
			rec:  Record{ID: 1, CreatedAt: t0, JitterFraction: ptr(0.10)},
			want: t0.Add(33 * day),
		},
		{
			name: "created, negative jitter",
			rec:  Record{ID: 1, CreatedAt: t0, JitterFraction: ptr(-0.20)},
			want: t0.Add(24 * day),
		},
		{
			name:     "last refresh wins over created",
			rec:      Record{ID: 1, CreatedAt: t0, LastRefreshAt: &refreshed},
			noJitter: true,
			want:     refreshed.Add(30 * day),
		},
		{
			name: "stored jitter clamped",
			rec:  Record{ID: 1, CreatedAt: t0, JitterFraction: ptr(0.5)},
			want: t0.Add(36 * day),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percent := 20.0
			if tt.noJitter {
				percent = 0
			}
			if got := DueAt(tt.rec, 30, percent); !got.Equal(tt.want) {
				t.Errorf("DueAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDueAtStable(t *testing.T) {
	for id := int64(1); id <= 200; id++ {
		rec := Record{ID: id, CreatedAt: t0.Add(time.Duration(id) * time.Minute)}
		first := DueAt(rec, 30, 20)
		for range 3 {
			if got := DueAt(rec, 30, 20); !got.Equal(first) {
				t.Fatalf("record %d: DueAt() changed from %v to %v", id, first, got)
			}
		}
		j := Jitter(rec, 20)
		if j < -0.2 || j > 0.2 {
			t.Fatalf("record %d: jitter %v out of range", id, j)
		}
		want := rec.CreatedAt.Add(time.Duration(float64(30*day) * (1 + j))).Round(time.Millisecond)
		if d := first.Sub(want); d > time.Millisecond || d < -time.Millisecond {
			t.Fatalf("record %d: DueAt() = %v, want about %v", id, first, want)
		}
	}
}

func TestJitterSpread(t *testing.T) {
	var neg, pos int
	for id := int64(1); id <= 500; id++ {
		j := Jitter(Record{ID: id, CreatedAt: t0}, 10)
		if j < -0.1 || j > 0.1 {
			t.Fatalf("record %d: jitter %v outside ±0.1", id, j)
		}
		if j < 0 {
			neg++
		} else {
			pos++
		}
	}
	if neg < 150 || pos < 150 {
		t.Errorf("jitter poorly spread: %d negative, %d positive", neg, pos)
	}
}

func TestJitterRerolledAfterRefresh(t *testing.T) {
	changed := 0
	for id := int64(1); id <= 50; id++ {
		rec := Record{ID: id, CreatedAt: t0}
		before := Jitter(rec, 20)
		refreshed := t0.Add(31 * day)
		rec.LastRefreshAt = &refreshed
		if Jitter(rec, 20) != before {
			changed++
		}
	}
	if changed < 45 {
		t.Errorf("jitter re-rolled for only %d of 50 records", changed)
	}
}

func TestStoredJitterOnlyBeforeFirstRefresh(t *testing.T) {
	rec := Record{ID: 9, CreatedAt: t0, JitterFraction: ptr(0.15)}
	if j := Jitter(rec, 20); j != 0.15 {
		t.Fatalf("Jitter() = %v, want stored 0.15", j)
	}

	refreshed := t0.Add(34 * day)
	rec.LastRefreshAt = &refreshed
	derived := Jitter(Record{ID: 9, CreatedAt: t0, LastRefreshAt: &refreshed}, 20)
	if j := Jitter(rec, 20); j != derived {
		t.Errorf("Jitter() after refresh = %v, want derived %v", j, derived)
	}
	if j := Jitter(rec, 0); j != 0 {
		t.Errorf("Jitter() after refresh at 0%% = %v, want 0", j)
	}
}

func TestJitterZeroPercent(t *testing.T) {
	if j := Jitter(Record{ID: 7, CreatedAt: t0}, 0); j != 0 {
		t.Errorf("Jitter() = %v with jitter disabled", j)
	}
}

func TestBatchSize(t *testing.T) {
	tests := []struct {
		name   string
		due    int
		policy Policy
		want   int
	}{
		{"nothing due", 0, DefaultPolicy(), 0},
		{"single record", 1, DefaultPolicy(), 1},
		{"thousand over thirty days", 1000, DefaultPolicy(), 3},
		{"never more than due", 5, Policy{IntervalDays: 1, BatchMultiplier: 100}, 5},
		{"minimum one", 10, Policy{IntervalDays: 365, BatchMultiplier: 2}, 1},
		{"multiplier scales", 1000, Policy{IntervalDays: 30, BatchMultiplier: 4}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BatchSize(tt.due, tt.policy); got != tt.want {
				t.Errorf("BatchSize(%d) = %d, want %d", tt.due, got, tt.want)
			}
		})
	}
}

func TestSelectorDue(t *testing.T) {
	now := t0.Add(40 * day)
	store := newMemStore(
		Record{ID: 1, CreatedAt: t0, JitterFraction: ptr(0.10)},                  // due at 33d
		Record{ID: 2, CreatedAt: t0, JitterFraction: ptr(-0.20)},                 // due at 24d
		Record{ID: 3, CreatedAt: t0.Add(20 * day), JitterFraction: ptr(0.0)},     // due at 50d
		Record{ID: 4, CreatedAt: t0.Add(-6 * day), JitterFraction: ptr(0.0)},     // due at 24d, ties with 2
		Record{ID: 5, CreatedAt: t0.Add(15 * day), JitterFraction: ptr(-0.20)},   // due at 39d
		Record{ID: 6, CreatedAt: t0.Add(15 * day), JitterFraction: ptr(0.20)},    // due at 51d
	)
	sel := NewSelector(store, DefaultPolicy())

	set, err := sel.Due(context.Background(), now)
	if err != nil {
		t.Fatalf("Due() error: %v", err)
	}
	var ids []int64
	for _, r := range set.Records {
		ids = append(ids, r.ID)
	}
	want := []int64{2, 4, 1, 5}
	if len(ids) != len(want) {
		t.Fatalf("Due() ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Due() ids = %v, want %v", ids, want)
		}
	}
	if set.Estimate != 4 {
		t.Errorf("Estimate = %d, want 4", set.Estimate)
	}
}

func TestSelectorDoesNotMutate(t *testing.T) {
	rec := Record{ID: 1, CreatedAt: t0}
	store := newMemStore(rec)
	sel := NewSelector(store, DefaultPolicy())

	for range 3 {
		if _, err := sel.Due(context.Background(), t0.Add(60*day)); err != nil {
			t.Fatal(err)
		}
	}
	if got := store.get(1); got.JitterFraction != nil || got.LastRefreshAt != nil {
		t.Errorf("selector mutated record: %+v", got)
	}
	if len(store.writes) != 0 {
		t.Errorf("selector wrote %d patches", len(store.writes))
	}
}

func TestSelectorInFlight(t *testing.T) {
	store := newMemStore(
		Record{ID: 1, CreatedAt: t0, JitterFraction: ptr(0.0)},
		Record{ID: 2, CreatedAt: t0, JitterFraction: ptr(0.0)},
	)
	sel := NewSelector(store, DefaultPolicy())

	if !sel.Acquire(1) {
		t.Fatal("Acquire(1) = false on an idle record")
	}
	if sel.Acquire(1) {
		t.Error("Acquire(1) = true while in flight")
	}

	set, err := sel.Due(context.Background(), t0.Add(31*day))
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Records) != 1 || set.Records[0].ID != 2 {
		t.Errorf("Due() returned in-flight record: %+v", set.Records)
	}
	if set.Estimate != 2 {
		t.Errorf("Estimate = %d, want 2", set.Estimate)
	}

	sel.Release(1)
	if sel.InFlight() != 0 {
		t.Errorf("InFlight() = %d after release", sel.InFlight())
	}
	if !sel.Acquire(1) {
		t.Error("Acquire(1) = false after release")
	}
}

func TestSelectorStoreError(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("database is locked")
	sel := NewSelector(store, DefaultPolicy())

	_, err := sel.Due(context.Background(), t0)
	if !errs.Is(err, errs.ErrCodeStore) {
		t.Errorf("Due() error = %v, want STORE_ERROR", err)
	}
}
