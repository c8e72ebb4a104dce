// Package refresh implements the background metadata refresh engine.
//
// # Overview
//
// A [Scheduler] ticks on a fixed period. Each tick asks the [Selector] for
// the records whose due time has passed, sizes a batch with [BatchSize] and
// refreshes that many records concurrently through an [Engine]:
//
//	Scheduler -> Selector -> Engine (Extractor + Enricher) -> Reconcile -> Store.Write
//
// # Due Times
//
//	due_at = (last_refresh_at ?? created_at) + interval × (1 + jitter)
//
// The jitter is the record's stored fraction or, when absent, a value derived
// deterministically from the record id and its base time (see [Jitter]), so
// the due time is stable until the record is refreshed again.
//
// # Reconciliation
//
// [Reconcile] is pure. It returns a [Patch] with only the fields whose value
// changed, applies the status state machine and never overwrites user-set
// links or associations. The engine stamps last_refresh_at on every
// completed attempt except when enrichment was rate limited; such records
// stay due for the next tick.
//
// # Status
//
//	active <-> inaccessible      consecutive page failures >= threshold / next success
//	* -> repo_unavailable        repository endpoint answered 404/410
//	repo_unavailable -> *        enrichment succeeds or the repository link is gone
//	archived                     never entered or left
//
// # Rate Limiting
//
// The first RATE_LIMITED answer of a tick suppresses enrichment for the
// rest of it. Remaining records still get their page refreshed and are
// counted in [TickStatus.RecordsSkippedRateLimited].
package refresh
