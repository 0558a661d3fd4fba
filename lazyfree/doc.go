// Package lazyfree decides how the cost of discarding values and containers
// is paid.
//
// Releasing a large aggregate (a list with millions of nodes, a whole
// database) on the command goroutine would stall every client for the
// duration of the teardown. The Reclaimer estimates the release effort of
// what it is given and, above Threshold, hands ownership to a background job
// instead of freeing inline.
//
// Effort queued in the background is reported by PendingCount, and effort
// released by completed jobs by FreedCount. Inline releases never show up in
// either counter.
//
//	pool := bio.NewPool(1, logger)
//	r := lazyfree.New(pool, logger)
//	obj, _ := db.Delete("big-set")
//	r.FreeObjectAsync("big-set", obj, db.ID())
package lazyfree
