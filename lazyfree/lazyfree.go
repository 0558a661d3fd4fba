package lazyfree

import (
	"github.com/vx-labs/lazyfree/bio"
	"github.com/vx-labs/lazyfree/functions"
	"github.com/vx-labs/lazyfree/keyspace"
	"github.com/vx-labs/lazyfree/object"
	"github.com/vx-labs/lazyfree/replication"
	"github.com/vx-labs/lazyfree/scripting"
	"github.com/vx-labs/lazyfree/tracking"
	"go.uber.org/zap"
)

// Threshold is the effort above which releasing is handed to a background
// worker. Under it, freeing inline is cheaper than scheduling a job.
const Threshold = 64

// Executor runs submitted jobs exactly once, at some later time, on some
// other goroutine.
type Executor interface {
	Submit(job bio.Job)
}

// Reclaimer decides, for every discarded value or container, whether it is
// released inline or by a background job. It must be called from a single
// goroutine; its counters may be read from anywhere.
type Reclaimer struct {
	executor Executor
	counters *Counters
	logger   *zap.Logger
}

func New(executor Executor, logger *zap.Logger) *Reclaimer {
	return &Reclaimer{
		executor: executor,
		counters: &Counters{},
		logger:   logger,
	}
}

func (r *Reclaimer) Counters() *Counters {
	return r.counters
}

// PendingCount returns the effort queued for background release.
func (r *Reclaimer) PendingCount() uint64 {
	return r.counters.PendingCount()
}

// FreedCount returns the effort released in the background since the last
// reset.
func (r *Reclaimer) FreedCount() uint64 {
	return r.counters.FreedCount()
}

func (r *Reclaimer) ResetFreedStats() {
	r.counters.ResetFreedStats()
}

// FreeEffort returns the work needed to release obj.
func FreeEffort(key string, obj *object.Object, dbid int) uint64 {
	return obj.FreeEffort(key, dbid)
}

func (r *Reclaimer) submit(kind string, charge uint64, job bio.Job) {
	r.counters.charge(charge)
	r.logger.Debug("scheduled lazy free job",
		zap.String("entity_kind", kind),
		zap.Uint64("effort", charge),
	)
	r.executor.Submit(job)
}

// FreeObjectAsync drops the caller reference on obj. Large objects nobody
// else references are released in the background. obj must not be used by
// the caller afterwards.
func (r *Reclaimer) FreeObjectAsync(key string, obj *object.Object, dbid int) {
	effort := FreeEffort(key, obj, dbid)
	// A shared object cannot be reclaimed now: only our reference goes away.
	if effort > Threshold && obj.RefCount() == 1 {
		charge := effort
		// The sentinel only selects the background path. Charging it
		// would wrap the pending counter.
		if effort == object.UnknownEffort {
			charge = 1
		}
		r.submit(obj.Type().String(), charge, freeObject(r.counters, obj, charge))
		return
	}
	obj.DecrRef()
}

// EmptyDBAsync swaps fresh tables into db and releases the previous ones in
// the background, whatever their size.
func (r *Reclaimer) EmptyDBAsync(db *keyspace.DB) {
	main, expires := db.Swap()
	r.submit("database", uint64(main.Len()), freeDatabase(r.counters, main, expires))
}

// FreeTrackingTableAsync releases the tracking table. table must not be used
// by the caller afterwards.
func (r *Reclaimer) FreeTrackingTableAsync(table *tracking.Table) {
	n := uint64(table.Len())
	if n > Threshold {
		r.submit("tracking_table", n, freeTrackingTable(r.counters, table))
		return
	}
	table.Release()
}

// FreeScriptCacheAsync releases the script cache. cache must not be used by
// the caller afterwards.
func (r *Reclaimer) FreeScriptCacheAsync(cache *scripting.Cache) {
	n := uint64(cache.Len())
	if n > Threshold {
		r.submit("script_cache", n, freeScriptCache(r.counters, cache))
		return
	}
	cache.Release()
}

// FreeFunctionsAsync releases a functions library context. ctx must not be
// used by the caller afterwards.
func (r *Reclaimer) FreeFunctionsAsync(ctx *functions.LibraryContext) {
	n := uint64(ctx.FunctionCount())
	if n > Threshold {
		r.submit("functions_context", n, freeFunctionsContext(r.counters, ctx))
		return
	}
	ctx.Release()
}

// FreeReplicationBacklogRefAsync releases backlog blocks and their index.
// Neither must be used by the caller afterwards.
func (r *Reclaimer) FreeReplicationBacklogRefAsync(blocks *replication.BlockList, index *replication.OffsetIndex) {
	if blocks.Len() > Threshold || index.Size() > Threshold {
		n := uint64(blocks.Len()) + uint64(index.Size())
		r.submit("replication_backlog", n, freeReplicationBacklogRef(r.counters, blocks, index))
		return
	}
	blocks.Release()
	index.Release()
}
