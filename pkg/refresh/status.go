package refresh

// health is what one refresh attempt learned about a record's two sources.
type health struct {
	primaryOK     bool // page fetched
	primaryFailed bool // page fetch failed with a counted error
	repoOK        bool // enrichment succeeded
	repoGone      bool // repository endpoint answered 404/410
	hasRepoLink   bool
}

// nextStatus applies the status state machine and returns the new status and
// consecutive failure count.
//
// archived is never entered or left. A vanished repository moves the record
// to repo_unavailable regardless of page health; it is left only once
// enrichment succeeds again or the repository link disappears, and the status
// is then derived from page health alone.
func nextStatus(cur Status, failures int, h health, threshold int) (Status, int) {
	switch {
	case h.primaryOK:
		failures = 0
	case h.primaryFailed:
		failures++
	}

	if cur == StatusArchived {
		return StatusArchived, failures
	}
	if h.repoGone {
		return StatusRepoUnavailable, failures
	}
	if cur == StatusRepoUnavailable && h.hasRepoLink && !h.repoOK {
		return StatusRepoUnavailable, failures
	}

	switch {
	case h.primaryOK:
		return StatusActive, failures
	case failures >= max(threshold, 1):
		return StatusInaccessible, failures
	case cur == StatusInaccessible:
		return StatusInaccessible, failures
	default:
		return StatusActive, failures
	}
}
