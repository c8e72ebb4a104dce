package refresh

import "testing"

func TestNextStatus(t *testing.T) {
	ok := health{primaryOK: true}
	fail := health{primaryFailed: true}

	tests := []struct {
		name         string
		cur          Status
		failures     int
		h            health
		wantStatus   Status
		wantFailures int
	}{
		{"success keeps active", StatusActive, 0, ok, StatusActive, 0},
		{"first failure stays active", StatusActive, 0, fail, StatusActive, 1},
		{"second failure stays active", StatusActive, 1, fail, StatusActive, 2},
		{"third failure flips", StatusActive, 2, fail, StatusInaccessible, 3},
		{"further failures stay", StatusInaccessible, 3, fail, StatusInaccessible, 4},
		{"success recovers", StatusInaccessible, 5, ok, StatusActive, 0},
		{"repo gone with healthy page", StatusActive, 0, health{primaryOK: true, repoGone: true, hasRepoLink: true}, StatusRepoUnavailable, 0},
		{"repo gone beats inaccessible", StatusInaccessible, 3, health{primaryFailed: true, repoGone: true, hasRepoLink: true}, StatusRepoUnavailable, 4},
		{"repo still unknown", StatusRepoUnavailable, 0, health{primaryOK: true, hasRepoLink: true}, StatusRepoUnavailable, 0},
		{"repo back", StatusRepoUnavailable, 0, health{primaryOK: true, repoOK: true, hasRepoLink: true}, StatusActive, 0},
		{"repo back, page down", StatusRepoUnavailable, 2, health{primaryFailed: true, repoOK: true, hasRepoLink: true}, StatusInaccessible, 3},
		{"repo link removed", StatusRepoUnavailable, 0, ok, StatusActive, 0},
		{"archived never changes", StatusArchived, 0, health{primaryFailed: true, repoGone: true}, StatusArchived, 1},
		{"archived success", StatusArchived, 2, ok, StatusArchived, 0},
		{"uncounted error keeps counter", StatusActive, 1, health{}, StatusActive, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, failures := nextStatus(tt.cur, tt.failures, tt.h, 3)
			if status != tt.wantStatus || failures != tt.wantFailures {
				t.Errorf("nextStatus() = %s, %d; want %s, %d", status, failures, tt.wantStatus, tt.wantFailures)
			}
		})
	}
}
