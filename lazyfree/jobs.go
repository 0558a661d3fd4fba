package lazyfree

import (
	"github.com/vx-labs/lazyfree/bio"
	"github.com/vx-labs/lazyfree/functions"
	"github.com/vx-labs/lazyfree/keyspace"
	"github.com/vx-labs/lazyfree/object"
	"github.com/vx-labs/lazyfree/replication"
	"github.com/vx-labs/lazyfree/scripting"
	"github.com/vx-labs/lazyfree/tracking"
)

// Job bodies below run on a background worker. Each one owns the entities it
// captured and touches nothing else but the counters.

func freeObject(c *Counters, obj *object.Object, charged uint64) bio.Job {
	return func() {
		obj.DecrRef()
		c.settle(charged)
	}
}

func freeDatabase(c *Counters, main *keyspace.Table, expires *keyspace.Expires) bio.Job {
	return func() {
		n := uint64(main.Len())
		main.Release()
		expires.Release()
		c.settle(n)
	}
}

func freeTrackingTable(c *Counters, table *tracking.Table) bio.Job {
	return func() {
		n := uint64(table.Len())
		table.Release()
		c.settle(n)
	}
}

func freeScriptCache(c *Counters, cache *scripting.Cache) bio.Job {
	return func() {
		n := uint64(cache.Len())
		cache.Release()
		c.settle(n)
	}
}

func freeFunctionsContext(c *Counters, ctx *functions.LibraryContext) bio.Job {
	return func() {
		n := uint64(ctx.FunctionCount())
		ctx.Release()
		c.settle(n)
	}
}

func freeReplicationBacklogRef(c *Counters, blocks *replication.BlockList, index *replication.OffsetIndex) bio.Job {
	return func() {
		n := uint64(blocks.Len()) + uint64(index.Size())
		blocks.Release()
		index.Release()
		c.settle(n)
	}
}
