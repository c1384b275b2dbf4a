package ingest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
)

// fakeMessageStore implements MessageStore with in-memory sorted sets.
type fakeMessageStore struct {
	mu      sync.Mutex
	sets    map[string][]scoredMember
	failing bool
	expires map[string]time.Duration
}

type scoredMember struct {
	score  float64
	member string
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		sets:    make(map[string][]scoredMember),
		expires: make(map[string]time.Duration),
	}
}

func (s *fakeMessageStore) err() error {
	if s.failing {
		return errors.New("cache store unreachable")
	}
	return nil
}

func (s *fakeMessageStore) Add(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return err
	}
	s.sets[key] = append(s.sets[key], scoredMember{score, member})
	sort.SliceStable(s.sets[key], func(i, j int) bool { return s.sets[key][i].score < s.sets[key][j].score })
	return nil
}

func (s *fakeMessageStore) Card(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return 0, err
	}
	return int64(len(s.sets[key])), nil
}

func (s *fakeMessageStore) TrimOldest(_ context.Context, key string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return err
	}
	set := s.sets[key]
	if n > int64(len(set)) {
		n = int64(len(set))
	}
	s.sets[key] = set[n:]
	return nil
}

func (s *fakeMessageStore) RevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return nil, err
	}
	set := s.sets[key]
	var out []string
	for i := int64(len(set)) - 1 - start; i >= 0 && int64(len(set))-1-i <= stop; i-- {
		out = append(out, set[i].member)
	}
	return out, nil
}

func (s *fakeMessageStore) RevRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return nil, err
	}
	set := s.sets[key]
	var out []string
	for i := len(set) - 1; i >= 0; i-- {
		if set[i].score >= min && set[i].score <= max {
			out = append(out, set[i].member)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return err
	}
	s.expires[key] = ttl
	return nil
}

func (s *fakeMessageStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.sets, k)
	}
	return nil
}

func (s *fakeMessageStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err(); err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for k := range s.sets {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func messageAt(ts int64) msg.GreenhouseMessage {
	v := float64(ts)
	return msg.GreenhouseMessage{TenantID: "T1", GreenhouseID: "1", Timestamp: ts, Sensor01: &v}
}

func TestCacheRecordAndRecent(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 1000, 24*time.Hour)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		cache.Record(ctx, "T1", messageAt(i*1000))
	}

	got := cache.Recent(ctx, "T1", 3)
	if len(got) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(got))
	}
	// newest first
	for i, want := range []int64{5000, 4000, 3000} {
		if got[i].Timestamp != want {
			t.Errorf("recent[%d].Timestamp = %d, want %d", i, got[i].Timestamp, want)
		}
	}
	if n := cache.Count(ctx, "T1"); n != 5 {
		t.Errorf("count = %d, want 5", n)
	}
}

func TestCacheCapInvariant(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 10, time.Hour)
	ctx := context.Background()

	for i := int64(1); i <= 25; i++ {
		cache.Record(ctx, "T1", messageAt(i))
		if n := cache.Count(ctx, "T1"); n > 10 {
			t.Fatalf("count = %d after %d records, cap is 10", n, i)
		}
	}

	got := cache.Recent(ctx, "T1", 10)
	if len(got) != 10 {
		t.Fatalf("len(recent) = %d, want 10", len(got))
	}
	// the survivors are the 10 most recent, descending
	for i, m := range got {
		if want := int64(25 - i); m.Timestamp != want {
			t.Errorf("recent[%d].Timestamp = %d, want %d", i, m.Timestamp, want)
		}
	}
}

func TestCacheRange(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 1000, time.Hour)
	ctx := context.Background()

	for i := int64(1); i <= 10; i++ {
		cache.Record(ctx, "T1", messageAt(i*100))
	}

	got := cache.Range(ctx, "T1", 300, 700)
	if len(got) != 5 {
		t.Fatalf("len(range) = %d, want 5", len(got))
	}
	for i, want := range []int64{700, 600, 500, 400, 300} {
		if got[i].Timestamp != want {
			t.Errorf("range[%d].Timestamp = %d, want %d", i, got[i].Timestamp, want)
		}
	}
}

func TestCacheLatest(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 1000, time.Hour)
	ctx := context.Background()

	if m := cache.Latest(ctx, "T1"); m != nil {
		t.Fatalf("latest on empty cache = %+v, want nil", m)
	}
	cache.Record(ctx, "T1", messageAt(100))
	cache.Record(ctx, "T1", messageAt(200))

	m := cache.Latest(ctx, "T1")
	if m == nil || m.Timestamp != 200 {
		t.Errorf("latest = %+v, want timestamp 200", m)
	}
}

func TestCacheTenantIsolation(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 1000, time.Hour)
	ctx := context.Background()

	cache.Record(ctx, "T1", messageAt(100))
	cache.Record(ctx, "T2", messageAt(200))
	// empty tenant goes to the reserved sentinel window
	cache.Record(ctx, "", messageAt(300))

	if got := cache.Recent(ctx, "T1", 10); len(got) != 1 || got[0].Timestamp != 100 {
		t.Errorf("T1 window polluted: %+v", got)
	}
	if got := cache.Recent(ctx, "T2", 10); len(got) != 1 || got[0].Timestamp != 200 {
		t.Errorf("T2 window polluted: %+v", got)
	}
	if got := cache.Recent(ctx, DefaultTenant, 10); len(got) != 1 || got[0].Timestamp != 300 {
		t.Errorf("sentinel window polluted: %+v", got)
	}
	if got := cache.Range(ctx, "T2", 0, 1000); len(got) != 1 || got[0].Timestamp != 200 {
		t.Errorf("T2 range sees other tenants: %+v", got)
	}
}

func TestCacheClear(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 1000, time.Hour)
	ctx := context.Background()

	cache.Record(ctx, "T1", messageAt(100))
	cache.Record(ctx, "T2", messageAt(200))

	if err := cache.Clear(ctx, "T1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n := cache.Count(ctx, "T1"); n != 0 {
		t.Errorf("T1 count after clear = %d", n)
	}
	if n := cache.Count(ctx, "T2"); n != 1 {
		t.Errorf("T2 count after T1 clear = %d", n)
	}

	if err := cache.ClearAll(ctx); err != nil {
		t.Fatalf("clearAll: %v", err)
	}
	if n := cache.Count(ctx, "T2"); n != 0 {
		t.Errorf("T2 count after clearAll = %d", n)
	}
}

func TestCacheRefreshesExpiry(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 1000, 24*time.Hour)
	ctx := context.Background()

	cache.Record(ctx, "T1", messageAt(100))
	if ttl := store.expires[cacheKey("T1")]; ttl != 24*time.Hour {
		t.Errorf("expiry = %s, want 24h", ttl)
	}
}

func TestCacheStoreOutageIsSwallowed(t *testing.T) {
	store := newFakeMessageStore()
	store.failing = true
	cache := NewRecentMessageCache(store, 1000, time.Hour)
	ctx := context.Background()

	// must not panic or propagate
	cache.Record(ctx, "T1", messageAt(100))

	if got := cache.Recent(ctx, "T1", 10); len(got) != 0 {
		t.Errorf("recent during outage = %+v, want empty", got)
	}
	if got := cache.Range(ctx, "T1", 0, 1000); len(got) != 0 {
		t.Errorf("range during outage = %+v, want empty", got)
	}
	if m := cache.Latest(ctx, "T1"); m != nil {
		t.Errorf("latest during outage = %+v, want nil", m)
	}
	if n := cache.Count(ctx, "T1"); n != 0 {
		t.Errorf("count during outage = %d, want 0", n)
	}
}

func TestCacheSkipsCorruptEntries(t *testing.T) {
	store := newFakeMessageStore()
	cache := NewRecentMessageCache(store, 1000, time.Hour)
	ctx := context.Background()

	cache.Record(ctx, "T1", messageAt(100))
	_ = store.Add(ctx, cacheKey("T1"), 200, "{corrupt")

	got := cache.Recent(ctx, "T1", 10)
	if len(got) != 1 || got[0].Timestamp != 100 {
		t.Errorf("recent with corrupt entry = %+v", got)
	}
}
