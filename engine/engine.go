// Package engine is the command surface of the store: it owns the
// databases and server side containers, and routes every discarded value or
// container through a lazyfree.Reclaimer.
//
// An Engine is not safe for concurrent use. Every method must be called
// from the same goroutine, the way commands are executed one at a time.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vx-labs/lazyfree/config"
	"github.com/vx-labs/lazyfree/functions"
	"github.com/vx-labs/lazyfree/keyspace"
	"github.com/vx-labs/lazyfree/lazyfree"
	"github.com/vx-labs/lazyfree/object"
	"github.com/vx-labs/lazyfree/replication"
	"github.com/vx-labs/lazyfree/scripting"
	"github.com/vx-labs/lazyfree/tracking"
	"go.uber.org/zap"
)

var (
	ErrInvalidDB = errors.New("DB index is out of range")
	ErrNoScript  = errors.New("no matching script")
)

// InvalidationHandler is told which clients must drop their cached copy of
// key. An empty key invalidates everything the clients cached, as after a
// flush.
type InvalidationHandler func(key string, clients []string)

// FlushMode selects how a flush releases what it discards.
type FlushMode int

const (
	// FlushDefault follows the lazyfree-lazy-user-flush setting.
	FlushDefault FlushMode = iota
	FlushSync
	FlushAsync
)

func (m FlushMode) String() string {
	switch m {
	case FlushSync:
		return "sync"
	case FlushAsync:
		return "async"
	default:
		return "default"
	}
}

type Engine struct {
	config     config.Config
	logger     *zap.Logger
	reclaimer  *lazyfree.Reclaimer
	dbs        []*keyspace.DB
	scripts    *scripting.Cache
	functions  *functions.LibraryContext
	tracking   *tracking.Table
	backlog    *replication.Backlog
	invalidate InvalidationHandler
	now        func() int64
}

type Option func(*Engine)

func WithInvalidationHandler(h InvalidationHandler) Option {
	return func(e *Engine) { e.invalidate = h }
}

// WithClock overrides the unix millisecond clock used for key expiry.
func WithClock(now func() int64) Option {
	return func(e *Engine) { e.now = now }
}

func New(reclaimer *lazyfree.Reclaimer, cfg config.Config, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		config:     cfg,
		logger:     logger,
		reclaimer:  reclaimer,
		dbs:        make([]*keyspace.DB, cfg.Databases),
		scripts:    scripting.NewCache(),
		functions:  functions.NewLibraryContext(),
		tracking:   tracking.NewTable(),
		backlog:    replication.NewBacklog(replication.DefaultBlockSize),
		invalidate: func(string, []string) {},
		now: func() int64 {
			return time.Now().UnixNano() / int64(time.Millisecond)
		},
	}
	for i := range e.dbs {
		e.dbs[i] = keyspace.NewDB(i)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) db(dbid int) (*keyspace.DB, error) {
	if dbid < 0 || dbid >= len(e.dbs) {
		return nil, errors.Wrapf(ErrInvalidDB, "db %d", dbid)
	}
	return e.dbs[dbid], nil
}

// DBSize returns the number of keys in database dbid.
func (e *Engine) DBSize(dbid int) (int, error) {
	db, err := e.db(dbid)
	if err != nil {
		return 0, err
	}
	return db.Size(), nil
}

func (e *Engine) touch(key string) {
	if clients := e.tracking.Invalidate(key); len(clients) > 0 {
		e.invalidate(key, clients)
	}
}

func (e *Engine) lazyFlush(mode FlushMode) bool {
	switch mode {
	case FlushSync:
		return false
	case FlushAsync:
		return true
	default:
		return e.config.LazyUserFlush
	}
}

// release drops the keyspace reference on obj, in the background when lazy
// is set and the object is worth it.
func (e *Engine) release(db *keyspace.DB, key string, obj *object.Object, lazy bool) {
	if lazy {
		e.reclaimer.FreeObjectAsync(key, obj, db.ID())
		return
	}
	obj.DecrRef()
}

// Set stores obj under key, taking over the caller reference. A previous
// value is discarded and its expiry cleared.
func (e *Engine) Set(dbid int, key string, obj *object.Object) error {
	db, err := e.db(dbid)
	if err != nil {
		return err
	}
	old, replaced := db.Main().Set(key, obj)
	db.Expires().Delete(key)
	if replaced {
		e.release(db, key, old, e.config.LazyServerDel)
	}
	e.touch(key)
	return nil
}

// Get returns the object stored under key. Expired keys are removed first.
// The returned object stays owned by the keyspace.
func (e *Engine) Get(dbid int, key string) (*object.Object, bool, error) {
	db, err := e.db(dbid)
	if err != nil {
		return nil, false, err
	}
	e.expireIfNeeded(db, key)
	obj, ok := db.Main().Get(key)
	return obj, ok, nil
}

// Expire sets the deadline of key, in unix milliseconds. It reports whether
// key exists.
func (e *Engine) Expire(dbid int, key string, deadline int64) (bool, error) {
	db, err := e.db(dbid)
	if err != nil {
		return false, err
	}
	if _, ok := db.Main().Get(key); !ok {
		return false, nil
	}
	db.Expires().Set(key, deadline)
	return true, nil
}

func (e *Engine) expireIfNeeded(db *keyspace.DB, key string) bool {
	deadline, ok := db.Expires().Get(key)
	if !ok || deadline > e.now() {
		return false
	}
	e.serverDelete(db, key, e.config.LazyExpire)
	return true
}

func (e *Engine) serverDelete(db *keyspace.DB, key string, lazy bool) bool {
	obj, ok := db.Delete(key)
	if !ok {
		return false
	}
	e.release(db, key, obj, lazy)
	e.touch(key)
	return true
}

func (e *Engine) deleteKeys(dbid int, keys []string, lazy bool) (int, error) {
	db, err := e.db(dbid)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range keys {
		e.expireIfNeeded(db, key)
		obj, ok := db.Delete(key)
		if !ok {
			continue
		}
		e.release(db, key, obj, lazy)
		e.touch(key)
		deleted++
	}
	return deleted, nil
}

// Del removes keys and returns how many existed. Values are released inline
// unless lazy user deletion is enabled.
func (e *Engine) Del(dbid int, keys ...string) (int, error) {
	return e.deleteKeys(dbid, keys, e.config.LazyUserDel)
}

// Unlink removes keys and returns how many existed. Large values are
// released in the background.
func (e *Engine) Unlink(dbid int, keys ...string) (int, error) {
	return e.deleteKeys(dbid, keys, true)
}

// Evict removes key on behalf of the server, as when reclaiming memory.
func (e *Engine) Evict(dbid int, key string) (bool, error) {
	db, err := e.db(dbid)
	if err != nil {
		return false, err
	}
	return e.serverDelete(db, key, e.config.LazyEviction), nil
}

// ExpireKeys removes every key whose deadline has passed and returns how
// many were removed.
func (e *Engine) ExpireKeys() int {
	now := e.now()
	removed := 0
	for _, db := range e.dbs {
		for _, key := range db.Expires().Expired(now) {
			if e.serverDelete(db, key, e.config.LazyExpire) {
				removed++
			}
		}
	}
	if removed > 0 {
		e.logger.Debug("expired keys", zap.Int("key_count", removed))
	}
	return removed
}

func (e *Engine) flush(db *keyspace.DB, async bool) int {
	size := db.Size()
	if async {
		e.reclaimer.EmptyDBAsync(db)
	} else {
		main, expires := db.Swap()
		main.Release()
		expires.Release()
	}
	return size
}

// invalidateOnFlush tells every tracking client that its whole cache is
// stale, then discards the tracking table.
func (e *Engine) invalidateOnFlush(async bool) {
	if clients := e.tracking.AllClients(); len(clients) > 0 {
		e.invalidate("", clients)
	}
	old := e.tracking
	e.tracking = tracking.NewTable()
	if async {
		e.reclaimer.FreeTrackingTableAsync(old)
		return
	}
	old.Release()
}

// FlushDB empties database dbid and returns how many keys it held.
func (e *Engine) FlushDB(dbid int, mode FlushMode) (int, error) {
	db, err := e.db(dbid)
	if err != nil {
		return 0, err
	}
	async := e.lazyFlush(mode)
	removed := e.flush(db, async)
	e.invalidateOnFlush(async)
	e.logger.Info("flushed database",
		zap.Int("db_id", dbid),
		zap.Int("key_count", removed),
		zap.Bool("async", async),
	)
	return removed, nil
}

// FlushAll empties every database.
func (e *Engine) FlushAll(mode FlushMode) int {
	async := e.lazyFlush(mode)
	removed := 0
	for _, db := range e.dbs {
		removed += e.flush(db, async)
	}
	e.invalidateOnFlush(async)
	e.logger.Info("flushed all databases",
		zap.Int("key_count", removed),
		zap.Bool("async", async),
	)
	return removed
}

// ScriptLoad caches body and returns its digest.
func (e *Engine) ScriptLoad(body string) string {
	return e.scripts.Load(body)
}

func (e *Engine) ScriptExists(sha string) bool {
	return e.scripts.Exists(sha)
}

// Script returns the cached body of sha.
func (e *Engine) Script(sha string) (string, error) {
	s, ok := e.scripts.Get(sha)
	if !ok {
		return "", errors.Wrap(ErrNoScript, sha)
	}
	return s.Body, nil
}

// ScriptFlush installs an empty script cache and discards the previous one.
func (e *Engine) ScriptFlush(mode FlushMode) {
	old := e.scripts
	e.scripts = scripting.NewCache()
	if e.lazyFlush(mode) {
		e.reclaimer.FreeScriptCacheAsync(old)
		return
	}
	old.Release()
}

// FunctionLoad registers lib, replacing a library of the same name when
// replace is set.
func (e *Engine) FunctionLoad(lib *functions.Library, replace bool) error {
	return e.functions.Load(lib, replace)
}

func (e *Engine) FunctionDelete(name string) error {
	return e.functions.Delete(name)
}

func (e *Engine) Function(name string) (*functions.Function, bool) {
	return e.functions.Function(name)
}

// FunctionFlush installs an empty library context and discards the
// previous one.
func (e *Engine) FunctionFlush(mode FlushMode) {
	old := e.functions
	e.functions = functions.NewLibraryContext()
	if e.lazyFlush(mode) {
		e.reclaimer.FreeFunctionsAsync(old)
		return
	}
	old.Release()
}

// Track records that client cached key.
func (e *Engine) Track(key, client string) {
	e.tracking.Track(key, client)
}

// DisableTracking forgets every tracked key.
func (e *Engine) DisableTracking() {
	old := e.tracking
	e.tracking = tracking.NewTable()
	e.reclaimer.FreeTrackingTableAsync(old)
}

// FeedBacklog appends replication stream data to the backlog.
func (e *Engine) FeedBacklog(data []byte) {
	e.backlog.Append(data)
}

// ReadBacklog returns the replication stream from offset.
func (e *Engine) ReadBacklog(offset int64) ([]byte, bool) {
	return e.backlog.ReadFrom(offset)
}

// ReleaseBacklog discards the backlog content, as when the last replica
// goes away. The replication offset is kept.
func (e *Engine) ReleaseBacklog() {
	blocks, index := e.backlog.Detach()
	e.reclaimer.FreeReplicationBacklogRefAsync(blocks, index)
}

// Info renders the lazyfree section of the INFO command.
func (e *Engine) Info() string {
	var b strings.Builder
	b.WriteString("# Lazyfree\r\n")
	fmt.Fprintf(&b, "lazyfree_pending_objects:%d\r\n", e.reclaimer.PendingCount())
	fmt.Fprintf(&b, "lazyfreed_objects:%d\r\n", e.reclaimer.FreedCount())
	return b.String()
}

// ResetStats zeroes the statistics counters.
func (e *Engine) ResetStats() {
	e.reclaimer.ResetFreedStats()
}
