package refresh

import (
	"cmp"
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"slices"
	"sync"
	"time"

	errs "github.com/matzehuels/refreshd/pkg/errors"
)

// MaxJitterFraction bounds any record's jitter, stored or derived.
const MaxJitterFraction = 0.2

const day = 24 * time.Hour

// Policy holds the scheduling and state-machine parameters.
type Policy struct {
	IntervalDays     int     // Days between refreshes, at least 1
	JitterPercent    float64 // Derived jitter range in percent, 0-20
	BatchMultiplier  float64 // Scales the hourly batch size
	FailureThreshold int     // Consecutive failures before inaccessible
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		IntervalDays:     30,
		JitterPercent:    20,
		BatchMultiplier:  2,
		FailureThreshold: 3,
	}
}

// Interval is the nominal time between refreshes.
func (p Policy) Interval() time.Duration {
	return time.Duration(p.IntervalDays) * day
}

func baseTime(rec Record) time.Time {
	if rec.LastRefreshAt != nil {
		return *rec.LastRefreshAt
	}
	return rec.CreatedAt
}

// Jitter returns the jitter fraction used for rec. A stored fraction applies
// until the record is first refreshed; otherwise one is derived from the
// record id and base time, so it stays fixed until the next refresh moves
// the base time.
func Jitter(rec Record, jitterPercent float64) float64 {
	if rec.JitterFraction != nil && rec.LastRefreshAt == nil {
		return math.Max(-MaxJitterFraction, math.Min(MaxJitterFraction, *rec.JitterFraction))
	}
	span := math.Max(0, math.Min(jitterPercent/100, MaxJitterFraction))
	if span == 0 {
		return 0
	}

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(rec.ID))
	binary.BigEndian.PutUint64(buf[8:], uint64(baseTime(rec).UnixNano()))
	h := fnv.New64a()
	h.Write(buf[:])
	x := h.Sum64()
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	u := float64(x>>11) / float64(1<<53) // [0, 1)
	return (2*u - 1) * span
}

// DueAt returns (last_refresh_at ?? created_at) + interval × (1 + jitter),
// at millisecond resolution.
func DueAt(rec Record, intervalDays int, jitterPercent float64) time.Time {
	ms := float64((time.Duration(intervalDays) * day).Milliseconds())
	offset := time.Duration(math.Round(ms*(1+Jitter(rec, jitterPercent)))) * time.Millisecond
	return baseTime(rec).Add(offset)
}

// BatchSize returns max(1, ceil(due / interval_days / 24 × multiplier)),
// never more than due.
func BatchSize(due int, p Policy) int {
	if due <= 0 {
		return 0
	}
	days := max(p.IntervalDays, 1)
	n := int(math.Ceil(float64(due) / float64(days) / 24 * p.BatchMultiplier))
	return min(max(n, 1), due)
}

// DueSet is the result of one selection.
type DueSet struct {
	Records  []Record // Oldest due first, ties by id
	Estimate int      // Due records, including those already in flight
}

// Selector computes the due set and tracks records being refreshed.
// It never mutates records.
type Selector struct {
	store  Store
	policy Policy

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewSelector creates a Selector reading from store.
func NewSelector(store Store, policy Policy) *Selector {
	return &Selector{
		store:    store,
		policy:   policy,
		inFlight: make(map[int64]struct{}),
	}
}

// Due returns the records due at now. The store is queried with the
// earliest cutoff any jitter allows; exact due times are computed here.
// Records currently in flight are left out of Records.
func (s *Selector) Due(ctx context.Context, now time.Time) (DueSet, error) {
	earliest := time.Duration(float64(s.policy.Interval()) * (1 - MaxJitterFraction))
	recs, err := s.store.ReadDue(ctx, now.Add(-earliest))
	if err != nil {
		return DueSet{}, errs.Wrap(errs.ErrCodeStore, err, "read due records")
	}

	type due struct {
		rec Record
		at  time.Time
	}
	var ready []due
	for _, r := range recs {
		if at := DueAt(r, s.policy.IntervalDays, s.policy.JitterPercent); !at.After(now) {
			ready = append(ready, due{r, at})
		}
	}
	slices.SortFunc(ready, func(a, b due) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.ID, b.rec.ID)
	})

	set := DueSet{Estimate: len(ready)}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range ready {
		if _, busy := s.inFlight[d.rec.ID]; !busy {
			set.Records = append(set.Records, d.rec)
		}
	}
	return set, nil
}

// Acquire marks id as in flight. It returns false if id already is.
func (s *Selector) Acquire(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

// Release clears the in-flight mark of id.
func (s *Selector) Release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// InFlight returns the number of records currently being refreshed.
func (s *Selector) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
