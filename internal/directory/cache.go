package directory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"memberdir/syncservice/internal/domain"
	"memberdir/syncservice/internal/metrics"
)

const (
	defaultCacheTTL        = 5 * time.Minute
	defaultStaleTTL        = 15 * time.Minute
	defaultCacheMaxEntries = 200
)

type listingCacheConfig struct {
	cacheTTL        time.Duration
	staleTTL        time.Duration
	cacheMaxEntries int
}

func defaultListingCacheConfig() listingCacheConfig {
	return listingCacheConfig{
		cacheTTL:        defaultCacheTTL,
		staleTTL:        defaultStaleTTL,
		cacheMaxEntries: defaultCacheMaxEntries,
	}
}

type cachedListing struct {
	page        domain.ProfilePage
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshing  bool
	refreshOnce sync.Once // Ensures only one refresh per stale period
}

// cacheLookup returns (page, hit, needsRefresh). A stale hit is still served,
// but the first stale reader triggers exactly one background refresh.
func (s *Service) cacheLookup(key string, now time.Time) (domain.ProfilePage, bool, bool) {
	// Try Redis first
	if s.redisCache != nil {
		page, found, err := s.redisCache.Get(context.Background(), key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			// Keep a local in-memory copy so staleness tracking works without
			// re-querying Redis.
			s.cacheStoreMemoryOnly(key, page, now)
			return page, true, false
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.ProfilePage{}, false, false
	}

	if now.Before(entry.expiresAt) {
		metrics.CacheHitsTotal.Inc()
		return cloneProfilePage(entry.page), true, false
	}

	if now.Before(entry.staleUntil) {
		metrics.CacheHitsTotal.Inc()
		needsRefresh := false
		entry.refreshOnce.Do(func() {
			needsRefresh = true
			entry.refreshing = true
		})
		return cloneProfilePage(entry.page), true, needsRefresh
	}

	metrics.CacheMissesTotal.Inc()
	delete(s.cache, key)
	return domain.ProfilePage{}, false, false
}

func (s *Service) cacheStore(key string, page domain.ProfilePage, now time.Time) {
	cacheTTL := s.cacheCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.cacheCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	if s.redisCache != nil {
		_ = s.redisCache.Set(context.Background(), key, page, cacheTTL)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedListing{
		page:       cloneProfilePage(page),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheStoreMemoryOnly(key string, page domain.ProfilePage, now time.Time) {
	cacheTTL := s.cacheCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.cacheCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedListing{
		page:       cloneProfilePage(page),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheClearRefreshing(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if entry := s.cache[key]; entry != nil {
		entry.refreshing = false
	}
}

// cacheInvalidateAll drops every cached listing, in memory and in Redis.
// Click counts change server-side, so a successful click write makes all
// cached pages potentially stale.
func (s *Service) cacheInvalidateAll() {
	s.cacheMu.Lock()
	keys := make([]string, 0, len(s.cache))
	for key := range s.cache {
		keys = append(keys, key)
	}
	s.cache = make(map[string]*cachedListing)
	s.cacheMu.Unlock()

	if s.redisCache != nil {
		for _, key := range keys {
			_ = s.redisCache.Delete(context.Background(), key)
		}
	}
}

func (s *Service) trimCacheLocked(now time.Time) {
	maxEntries := s.cacheCfg.cacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	for key, entry := range s.cache {
		if now.After(entry.staleUntil) {
			delete(s.cache, key)
		}
	}

	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedListing
	}
	items := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-maxEntries; i++ {
		delete(s.cache, items[i].key)
	}
}

func cloneProfilePage(page domain.ProfilePage) domain.ProfilePage {
	cloned := page
	if page.Profiles != nil {
		cloned.Profiles = make([]domain.Profile, len(page.Profiles))
		for i, profile := range page.Profiles {
			copied := profile
			copied.Specialisations = append([]string(nil), profile.Specialisations...)
			copied.Keywords = append([]string(nil), profile.Keywords...)
			cloned.Profiles[i] = copied
		}
	}
	return cloned
}

func buildListingCacheKey(listQuery domain.ListQuery) string {
	return strings.Join([]string{
		"page=" + strconv.Itoa(listQuery.Page),
		"limit=" + strconv.Itoa(listQuery.Limit),
		"loc=" + strings.ToLower(strings.TrimSpace(listQuery.Location)),
		"spec=" + strings.ToLower(strings.TrimSpace(listQuery.Specialisation)),
	}, "|")
}
