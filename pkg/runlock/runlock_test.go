package runlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements SET NX and the two lock scripts over a map.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	extends int
	err     error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.values[keys[0]] != args[0] {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch sha1 {
	case releaseScript.Hash():
		delete(f.values, keys[0])
	case extendScript.Hash():
		f.extends++
	default:
		return redis.NewCmdResult(nil, errors.New("NOSCRIPT unknown script"))
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, _ []string, _ ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("eval not supported"))
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeRedis) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeRedis) extendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extends
}

func testLocker(f *fakeRedis) *Locker {
	return NewLocker(f, "", ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestLocker_AcquireRelease(t *testing.T) {
	f := newFakeRedis()
	l := testLocker(f)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "manifest.yaml", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "yeastmine:lock:manifest.yaml", lock.Key())

	_, err = l.Acquire(ctx, "manifest.yaml", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)

	again, err := l.Acquire(ctx, "manifest.yaml", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLocker_ReleaseOnlyByOwner(t *testing.T) {
	f := newFakeRedis()
	l := testLocker(f)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "m", time.Minute)
	require.NoError(t, err)

	// someone else took the key after expiry
	f.values[lock.Key()] = "other-owner"
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	assert.ErrorIs(t, lock.Extend(ctx, time.Minute), ErrLockNotHeld)
}

func TestLocker_TryAcquireTimesOut(t *testing.T) {
	f := newFakeRedis()
	l := testLocker(f)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "m", time.Minute)
	require.NoError(t, err)

	start := time.Now()
	_, err = l.TryAcquire(ctx, "m", time.Minute, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLocker_AcquireError(t *testing.T) {
	f := newFakeRedis()
	f.err = errors.New("connection refused")
	_, err := testLocker(f).TryAcquire(context.Background(), "m", time.Minute, time.Second)
	assert.ErrorContains(t, err, "connection refused")
}

func TestLock_KeepAlive(t *testing.T) {
	f := newFakeRedis()
	l := testLocker(f)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "m", 30*time.Millisecond)
	require.NoError(t, err)

	stop := lock.KeepAlive(ctx)
	assert.Eventually(t, func() bool { return f.extendCount() >= 2 }, time.Second, 5*time.Millisecond)
	stop()

	n := f.extendCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, f.extendCount())
}
