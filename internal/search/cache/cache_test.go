package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"docsearch/internal/index/tokenizer"
	"docsearch/internal/search"
	"docsearch/pkg/config"
)

// fakeStore is an in-memory Store that mimics Redis nil-on-miss semantics.
type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
	gets int
	sets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.err != nil {
		return f.err
	}
	f.data[key] = fmt.Sprintf("%s", value)
	return nil
}

func (f *fakeStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n := int64(len(f.data))
	f.data = make(map[string]string)
	return n, nil
}

func (f *fakeStore) getCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeStore) setCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func newTestCache(fs *fakeStore) *QueryCache {
	return New(fs, config.RedisConfig{CacheTTL: time.Minute}, tokenizer.New([]string{"is", "the", "it", "and", "some"}))
}

func newKeyCache() *QueryCache {
	// No store needed: buildKey is pure.
	return New(nil, config.RedisConfig{}, tokenizer.New([]string{"is", "the", "it", "and", "some"}))
}

func TestBuildKeyEquivalentQueries(t *testing.T) {
	c := newKeyCache()

	base := c.buildKey("document contains text", 10)
	equivalents := []string{
		"text contains document",
		"Document CONTAINS text!",
		"the document contains some text",
		"document document contains text",
	}
	for _, q := range equivalents {
		if got := c.buildKey(q, 10); got != base {
			t.Errorf("buildKey(%q) = %s, want same key as base query", q, got)
		}
	}
}

func TestBuildKeyDistinguishes(t *testing.T) {
	c := newKeyCache()

	base := c.buildKey("document contains text", 10)
	if got := c.buildKey("document contains", 10); got == base {
		t.Error("different term sets must not share a key")
	}
	if got := c.buildKey("document contains text", 20); got == base {
		t.Error("different limits must not share a key")
	}
}

func TestBuildKeyPrefix(t *testing.T) {
	c := newKeyCache()
	key := c.buildKey("anything", 1)
	if len(key) <= len(keyPrefix) || key[:len(keyPrefix)] != keyPrefix {
		t.Fatalf("key %q missing prefix %q", key, keyPrefix)
	}
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	fs := newFakeStore()
	c := newTestCache(fs)
	computes := 0
	compute := func() (*search.Result, error) {
		computes++
		return &search.Result{Query: "first", TotalHits: 2, Matches: []string{"1", "3"}}, nil
	}

	result, hit, err := c.GetOrCompute(context.Background(), "first", 10, compute)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if hit {
		t.Fatal("first call must be a miss")
	}
	if computes != 1 {
		t.Fatalf("computeFn ran %d times, want 1", computes)
	}
	if fs.setCalls() != 1 {
		t.Fatalf("store saw %d sets, want 1", fs.setCalls())
	}

	// An equivalent query shares the key and must hit without recomputing.
	result, hit, err = c.GetOrCompute(context.Background(), "the First!", 10, compute)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !hit {
		t.Fatal("equivalent query must hit the cache")
	}
	if computes != 1 {
		t.Fatalf("computeFn ran %d times after hit, want 1", computes)
	}
	if !reflect.DeepEqual(result.Matches, []string{"1", "3"}) {
		t.Fatalf("cached Matches = %v, want [1 3]", result.Matches)
	}

	hits, misses := c.Stats()
	if hits != 1 {
		t.Fatalf("Stats hits = %d, want 1", hits)
	}
	if misses == 0 {
		t.Fatal("Stats misses = 0, want at least 1")
	}
}

func TestGetOrComputeCollapsesConcurrentQueries(t *testing.T) {
	fs := newFakeStore()
	c := newTestCache(fs)

	var computes atomic.Int32
	gate := make(chan struct{})
	compute := func() (*search.Result, error) {
		computes.Add(1)
		<-gate
		return &search.Result{Query: "document", TotalHits: 1, Matches: []string{"1"}}, nil
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := c.GetOrCompute(context.Background(), "document", 10, compute)
			if err != nil {
				errs <- err
				return
			}
			if result == nil || result.TotalHits != 1 {
				errs <- fmt.Errorf("unexpected result %+v", result)
				return
			}
			errs <- nil
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if got := computes.Load(); got != 1 {
		t.Fatalf("computeFn ran %d times for identical concurrent queries, want 1", got)
	}
}

func TestGetOrComputeDegradesWhenStoreFails(t *testing.T) {
	fs := newFakeStore()
	fs.err = errors.New("connection refused")
	c := newTestCache(fs)
	compute := func() (*search.Result, error) {
		return &search.Result{Query: "first", TotalHits: 1, Matches: []string{"1"}}, nil
	}

	for i := 0; i < 8; i++ {
		result, hit, err := c.GetOrCompute(context.Background(), "first", 10, compute)
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if hit {
			t.Fatalf("call %d reported a hit with a failing store", i)
		}
		if !reflect.DeepEqual(result.Matches, []string{"1"}) {
			t.Fatalf("call %d: Matches = %v, want [1]", i, result.Matches)
		}
	}

	if !c.breaker.IsOpen() {
		t.Fatal("breaker should be open after repeated store failures")
	}
	// Each uncached call performs at most two gets; the breaker must have
	// short-circuited well below that.
	if fs.getCalls() >= 16 {
		t.Fatalf("store saw %d gets, breaker did not short-circuit", fs.getCalls())
	}
}

func TestInvalidateFlushesEntries(t *testing.T) {
	fs := newFakeStore()
	c := newTestCache(fs)
	computes := 0
	compute := func() (*search.Result, error) {
		computes++
		return &search.Result{Query: "first", TotalHits: 2, Matches: []string{"1", "3"}}, nil
	}

	if _, _, err := c.GetOrCompute(context.Background(), "first", 10, compute); err != nil {
		t.Fatalf("populate failed: %v", err)
	}
	if err := c.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	_, hit, err := c.GetOrCompute(context.Background(), "first", 10, compute)
	if err != nil {
		t.Fatalf("post-invalidate call failed: %v", err)
	}
	if hit {
		t.Fatal("entry survived invalidation")
	}
	if computes != 2 {
		t.Fatalf("computeFn ran %d times, want 2", computes)
	}
}
