package engine

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/lazyfree/bio"
	"github.com/vx-labs/lazyfree/config"
	"github.com/vx-labs/lazyfree/functions"
	"github.com/vx-labs/lazyfree/lazyfree"
	"github.com/vx-labs/lazyfree/object"
	"go.uber.org/zap"
)

type recordingExecutor struct {
	jobs []bio.Job
}

func (e *recordingExecutor) Submit(job bio.Job) {
	e.jobs = append(e.jobs, job)
}

func (e *recordingExecutor) runAll() {
	jobs := e.jobs
	e.jobs = nil
	for _, job := range jobs {
		job()
	}
}

func newEngine(cfg config.Config, opts ...Option) (*Engine, *recordingExecutor) {
	executor := &recordingExecutor{}
	r := lazyfree.New(executor, zap.NewNop())
	return New(r, cfg, zap.NewNop(), opts...), executor
}

func bigSet(size int) *object.Object {
	s := object.NewSet()
	for i := 0; i < size; i++ {
		s.Add(fmt.Sprintf("member:%d", i))
	}
	return object.New(s)
}

func str(v string) *object.Object {
	return object.New(object.NewString([]byte(v)))
}

func TestUnlinkBigSetIsAsync(t *testing.T) {
	e, executor := newEngine(config.Default())
	require.NoError(t, e.Set(0, "big", bigSet(1000)))
	require.NoError(t, e.Set(0, "small", str("v")))

	n, err := e.Unlink(0, "big", "small", "missing")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	size, _ := e.DBSize(0)
	require.Equal(t, 0, size)
	require.Len(t, executor.jobs, 1)
	require.Equal(t, uint64(1000), e.reclaimer.PendingCount())

	executor.runAll()
	require.Equal(t, uint64(1000), e.reclaimer.FreedCount())
}

func TestDelHonorsLazyUserDel(t *testing.T) {
	e, executor := newEngine(config.Default())
	require.NoError(t, e.Set(0, "big", bigSet(1000)))
	n, err := e.Del(0, "big")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, executor.jobs)

	cfg := config.Default()
	cfg.LazyUserDel = true
	e, executor = newEngine(cfg)
	require.NoError(t, e.Set(0, "big", bigSet(1000)))
	_, err = e.Del(0, "big")
	require.NoError(t, err)
	require.Len(t, executor.jobs, 1)
}

func TestInvalidDB(t *testing.T) {
	e, _ := newEngine(config.Default())
	_, err := e.Del(16, "k")
	require.Equal(t, ErrInvalidDB, errors.Cause(err))
	_, err = e.FlushDB(-1, FlushAsync)
	require.Equal(t, ErrInvalidDB, errors.Cause(err))
}

func TestSetReplacesValue(t *testing.T) {
	cfg := config.Default()
	cfg.LazyServerDel = true
	e, executor := newEngine(cfg)
	old := bigSet(500)
	require.NoError(t, e.Set(0, "k", old))
	_, err := e.Expire(0, "k", 1)
	require.NoError(t, err)
	require.NoError(t, e.Set(0, "k", str("v")))
	require.Len(t, executor.jobs, 1)

	obj, ok, err := e.Get(0, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, object.TypeString, obj.Type())
}

func TestFlushDBAsync(t *testing.T) {
	e, executor := newEngine(config.Default())
	for i := 0; i < 10000; i++ {
		require.NoError(t, e.Set(3, fmt.Sprintf("key:%d", i), str("v")))
	}
	n, err := e.FlushDB(3, FlushAsync)
	require.NoError(t, err)
	require.Equal(t, 10000, n)
	require.Equal(t, uint64(10000), e.reclaimer.PendingCount())

	require.NoError(t, e.Set(3, "fresh", str("v")))
	size, _ := e.DBSize(3)
	require.Equal(t, 1, size)

	executor.runAll()
	require.Equal(t, uint64(0), e.reclaimer.PendingCount())
	require.Equal(t, uint64(10000), e.reclaimer.FreedCount())
}

func TestFlushDBSync(t *testing.T) {
	e, executor := newEngine(config.Default())
	require.NoError(t, e.Set(0, "k", bigSet(1000)))
	n, err := e.FlushDB(0, FlushDefault)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, executor.jobs)
}

func TestFlushModeOverridesLazyUserFlush(t *testing.T) {
	cfg := config.Default()
	cfg.LazyUserFlush = true
	e, executor := newEngine(cfg)

	require.NoError(t, e.Set(0, "k", str("v")))
	_, err := e.FlushDB(0, FlushDefault)
	require.NoError(t, err)
	require.Len(t, executor.jobs, 1)
	executor.runAll()

	require.NoError(t, e.Set(0, "k", bigSet(1000)))
	_, err = e.FlushDB(0, FlushSync)
	require.NoError(t, err)
	require.Empty(t, executor.jobs)

	require.NoError(t, e.Set(0, "k", str("v")))
	e.FlushAll(FlushSync)
	require.Empty(t, executor.jobs)

	for i := 0; i < 100; i++ {
		e.ScriptLoad(fmt.Sprintf("return %d", i))
	}
	e.ScriptFlush(FlushSync)
	require.Empty(t, executor.jobs)
	for i := 0; i < 100; i++ {
		e.ScriptLoad(fmt.Sprintf("return %d", i))
	}
	e.ScriptFlush(FlushDefault)
	require.Len(t, executor.jobs, 1)
	executor.runAll()

	lib := &functions.Library{Name: "lib"}
	for i := 0; i < 80; i++ {
		lib.Functions = append(lib.Functions, &functions.Function{Name: fmt.Sprintf("fn%d", i)})
	}
	require.NoError(t, e.FunctionLoad(lib, false))
	e.FunctionFlush(FlushSync)
	require.Empty(t, executor.jobs)
	_, ok := e.Function("fn1")
	require.False(t, ok)
}

func TestFlushInvalidatesTrackedKeys(t *testing.T) {
	var notified [][]string
	var keys []string
	e, executor := newEngine(config.Default(), WithInvalidationHandler(func(key string, clients []string) {
		keys = append(keys, key)
		notified = append(notified, clients)
	}))
	for i := 0; i < 100; i++ {
		e.Track(fmt.Sprintf("key:%d", i), "client-a")
	}
	e.Track("key:0", "client-b")

	_, err := e.FlushDB(0, FlushSync)
	require.NoError(t, err)
	require.Equal(t, []string{""}, keys)
	require.Equal(t, [][]string{{"client-a", "client-b"}}, notified)
	require.Empty(t, executor.jobs)
	require.NoError(t, e.Set(0, "key:1", str("v")))
	require.Len(t, keys, 1, "flushed keys are no longer tracked")

	for i := 0; i < 100; i++ {
		e.Track(fmt.Sprintf("key:%d", i), "client-a")
	}
	e.FlushAll(FlushAsync)
	require.Len(t, keys, 2)
	require.Equal(t, []string{"client-a"}, notified[1])
	require.Len(t, executor.jobs, 16+1)
	// one key left in db 0 plus the hundred tracked keys
	require.Equal(t, uint64(1+100), e.reclaimer.PendingCount())
	executor.runAll()
	require.Equal(t, uint64(1+100), e.reclaimer.FreedCount())

	e.FlushAll(FlushAsync)
	require.Len(t, keys, 2, "no tracking client left to notify")
}

func TestFlushAll(t *testing.T) {
	e, executor := newEngine(config.Default())
	for db := 0; db < 4; db++ {
		require.NoError(t, e.Set(db, "k", str("v")))
	}
	require.Equal(t, 4, e.FlushAll(FlushAsync))
	require.Len(t, executor.jobs, 16)
	executor.runAll()
	require.Equal(t, uint64(4), e.reclaimer.FreedCount())
}

func TestExpiry(t *testing.T) {
	now := int64(1000)
	e, _ := newEngine(config.Default(), WithClock(func() int64 { return now }))
	require.NoError(t, e.Set(0, "a", str("v")))
	require.NoError(t, e.Set(0, "b", str("v")))
	ok, err := e.Expire(0, "a", 1500)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = e.Expire(0, "missing", 1500)
	require.NoError(t, err)
	require.False(t, ok)

	_, found, _ := e.Get(0, "a")
	require.True(t, found)
	now = 1500
	_, found, _ = e.Get(0, "a")
	require.False(t, found)

	_, err = e.Expire(0, "b", 1200)
	require.NoError(t, err)
	require.Equal(t, 1, e.ExpireKeys())
	size, _ := e.DBSize(0)
	require.Equal(t, 0, size)
}

func TestEvictHonorsLazyEviction(t *testing.T) {
	cfg := config.Default()
	cfg.LazyServerDel = true
	cfg.LazyExpire = true
	e, executor := newEngine(cfg)
	require.NoError(t, e.Set(0, "big", bigSet(1000)))
	ok, err := e.Evict(0, "big")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, executor.jobs)

	cfg = config.Default()
	cfg.LazyEviction = true
	e, executor = newEngine(cfg)
	require.NoError(t, e.Set(0, "big", bigSet(1000)))
	ok, err = e.Evict(0, "big")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, executor.jobs, 1)
}

func TestExpiryHonorsLazyExpire(t *testing.T) {
	now := int64(1000)
	cfg := config.Default()
	cfg.LazyServerDel = true
	cfg.LazyEviction = true
	e, executor := newEngine(cfg, WithClock(func() int64 { return now }))
	require.NoError(t, e.Set(0, "a", bigSet(1000)))
	_, err := e.Expire(0, "a", 500)
	require.NoError(t, err)
	_, found, err := e.Get(0, "a")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, executor.jobs)

	cfg = config.Default()
	cfg.LazyExpire = true
	e, executor = newEngine(cfg, WithClock(func() int64 { return now }))
	require.NoError(t, e.Set(0, "a", bigSet(1000)))
	require.NoError(t, e.Set(0, "b", bigSet(1000)))
	_, err = e.Expire(0, "a", 500)
	require.NoError(t, err)
	_, err = e.Expire(0, "b", 500)
	require.NoError(t, err)
	_, found, err = e.Get(0, "a")
	require.NoError(t, err)
	require.False(t, found)
	require.Len(t, executor.jobs, 1)
	require.Equal(t, 1, e.ExpireKeys())
	require.Len(t, executor.jobs, 2)
}

func TestScriptFlushAsync(t *testing.T) {
	e, executor := newEngine(config.Default())
	var first string
	for i := 0; i < 100; i++ {
		sha := e.ScriptLoad(fmt.Sprintf("return %d", i))
		if i == 0 {
			first = sha
		}
	}
	body, err := e.Script(first)
	require.NoError(t, err)
	require.Equal(t, "return 0", body)

	e.ScriptFlush(FlushAsync)
	require.False(t, e.ScriptExists(first))
	_, err = e.Script(first)
	require.Equal(t, ErrNoScript, errors.Cause(err))
	require.Len(t, executor.jobs, 1)
	require.Equal(t, uint64(100), e.reclaimer.PendingCount())

	sha := e.ScriptLoad("return 1")
	require.True(t, e.ScriptExists(sha))
}

func TestFunctionFlushAsync(t *testing.T) {
	e, executor := newEngine(config.Default())
	lib := &functions.Library{Name: "mylib", Engine: "LUA"}
	for i := 0; i < 80; i++ {
		lib.Functions = append(lib.Functions, &functions.Function{Name: fmt.Sprintf("fn%d", i)})
	}
	require.NoError(t, e.FunctionLoad(lib, false))
	_, ok := e.Function("fn3")
	require.True(t, ok)

	e.FunctionFlush(FlushAsync)
	_, ok = e.Function("fn3")
	require.False(t, ok)
	require.Len(t, executor.jobs, 1)
	require.Equal(t, uint64(80), e.reclaimer.PendingCount())

	require.NoError(t, e.FunctionLoad(&functions.Library{Name: "mylib"}, false))
	require.NoError(t, e.FunctionDelete("mylib"))
}

func TestTracking(t *testing.T) {
	invalidated := map[string][]string{}
	e, executor := newEngine(config.Default(), WithInvalidationHandler(func(key string, clients []string) {
		invalidated[key] = clients
	}))
	e.Track("k", "client-b")
	e.Track("k", "client-a")
	require.NoError(t, e.Set(0, "k", str("v")))
	require.Equal(t, []string{"client-a", "client-b"}, invalidated["k"])

	for i := 0; i < 200; i++ {
		e.Track(fmt.Sprintf("key:%d", i), "client-a")
	}
	e.DisableTracking()
	require.Len(t, executor.jobs, 1)
	require.Equal(t, uint64(200), e.reclaimer.PendingCount())
	require.NoError(t, e.Set(0, "key:1", str("v")))
	require.NotContains(t, invalidated, "key:1")
}

func TestReleaseBacklog(t *testing.T) {
	e, executor := newEngine(config.Default())
	e.FeedBacklog([]byte("hello"))
	data, ok := e.ReadBacklog(0)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), data)

	e.ReleaseBacklog()
	require.Empty(t, executor.jobs)
	_, ok = e.ReadBacklog(0)
	require.False(t, ok)
	data, ok = e.ReadBacklog(5)
	require.True(t, ok)
	require.Empty(t, data)
}

func TestInfoAndResetStats(t *testing.T) {
	e, executor := newEngine(config.Default())
	require.NoError(t, e.Set(0, "big", bigSet(1000)))
	_, err := e.Unlink(0, "big")
	require.NoError(t, err)
	require.Equal(t, "# Lazyfree\r\nlazyfree_pending_objects:1000\r\nlazyfreed_objects:0\r\n", e.Info())

	executor.runAll()
	require.Equal(t, "# Lazyfree\r\nlazyfree_pending_objects:0\r\nlazyfreed_objects:1000\r\n", e.Info())

	e.ResetStats()
	require.Equal(t, "# Lazyfree\r\nlazyfree_pending_objects:0\r\nlazyfreed_objects:0\r\n", e.Info())
}
