package directory

import (
	"testing"
	"time"

	"memberdir/syncservice/internal/domain"
)

func testPage(total int) domain.ProfilePage {
	return domain.ProfilePage{
		Profiles: []domain.Profile{{ID: "p1", Name: "Alpha", Keywords: []string{"yoga"}}},
		Page:     1,
		Pages:    1,
		Total:    total,
	}
}

func TestBuildListingCacheKey(t *testing.T) {
	a := buildListingCacheKey(domain.ListQuery{Page: 1, Limit: 12, Location: "Guildford"})
	b := buildListingCacheKey(domain.ListQuery{Page: 1, Limit: 12, Location: "  guildford "})
	if a != b {
		t.Fatalf("keys must normalize case and whitespace: %q vs %q", a, b)
	}
	c := buildListingCacheKey(domain.ListQuery{Page: 2, Limit: 12, Location: "Guildford"})
	if a == c {
		t.Fatal("different pages must have different keys")
	}
}

func TestCacheHitWithinTTL(t *testing.T) {
	svc := NewService(nil, time.Second)
	now := time.Now()

	svc.cacheStore("k", testPage(10), now)
	page, ok, needsRefresh := svc.cacheLookup("k", now.Add(time.Minute))
	if !ok || needsRefresh {
		t.Fatalf("expected fresh hit, ok=%v refresh=%v", ok, needsRefresh)
	}
	if page.Total != 10 {
		t.Fatalf("unexpected payload %+v", page)
	}
}

func TestCacheMiss(t *testing.T) {
	svc := NewService(nil, time.Second)
	if _, ok, _ := svc.cacheLookup("missing", time.Now()); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestCacheStaleHitTriggersSingleRefresh(t *testing.T) {
	svc := NewService(nil, time.Second)
	now := time.Now()
	svc.cacheStore("k", testPage(10), now)

	stale := now.Add(svc.cacheCfg.cacheTTL + time.Second)
	_, ok, first := svc.cacheLookup("k", stale)
	if !ok || !first {
		t.Fatalf("first stale read must serve and flag refresh, ok=%v refresh=%v", ok, first)
	}
	_, ok, second := svc.cacheLookup("k", stale)
	if !ok || second {
		t.Fatalf("second stale read must serve without another refresh, ok=%v refresh=%v", ok, second)
	}
}

func TestCacheExpiresAfterStaleWindow(t *testing.T) {
	svc := NewService(nil, time.Second)
	now := time.Now()
	svc.cacheStore("k", testPage(10), now)

	dead := now.Add(svc.cacheCfg.staleTTL + time.Second)
	if _, ok, _ := svc.cacheLookup("k", dead); ok {
		t.Fatal("entries past the stale window must miss")
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	svc := NewService(nil, time.Second)
	now := time.Now()
	svc.cacheStore("a", testPage(1), now)
	svc.cacheStore("b", testPage(2), now)

	svc.cacheInvalidateAll()
	if _, ok, _ := svc.cacheLookup("a", now); ok {
		t.Fatal("invalidation must drop entry a")
	}
	if _, ok, _ := svc.cacheLookup("b", now); ok {
		t.Fatal("invalidation must drop entry b")
	}
}

func TestCacheTrimEvictsOldest(t *testing.T) {
	svc := NewService(nil, time.Second)
	svc.cacheCfg.cacheMaxEntries = 2
	now := time.Now()

	svc.cacheStore("old", testPage(1), now.Add(-2*time.Minute))
	svc.cacheStore("mid", testPage(2), now.Add(-time.Minute))
	svc.cacheStore("new", testPage(3), now)

	if _, ok, _ := svc.cacheLookup("old", now); ok {
		t.Fatal("oldest entry must be evicted past the cap")
	}
	if _, ok, _ := svc.cacheLookup("new", now); !ok {
		t.Fatal("newest entry must survive the trim")
	}
}

func TestCloneProfilePageIsolation(t *testing.T) {
	svc := NewService(nil, time.Second)
	now := time.Now()
	original := testPage(10)
	svc.cacheStore("k", original, now)

	cached, ok, _ := svc.cacheLookup("k", now)
	if !ok {
		t.Fatal("expected hit")
	}
	cached.Profiles[0].Name = "Mutated"

	again, _, _ := svc.cacheLookup("k", now)
	if again.Profiles[0].Name != "Alpha" {
		t.Fatal("mutating a cache result must not leak into the cache")
	}
}
