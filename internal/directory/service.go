package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"memberdir/syncservice/internal/domain"
	"memberdir/syncservice/internal/heropool"
	"memberdir/syncservice/internal/pagination"
	"memberdir/syncservice/internal/reqstate"
	"memberdir/syncservice/internal/search"
)

// Operation keys for the request-state table. Every remote call runs under
// one of these, so callers can watch a stable name.
const (
	OpProfilesList  = "profiles:list"
	OpProfilesClick = "profiles:click"
)

// searchFetchLimit is how many profiles one search pass pulls from the
// backend. Search runs over the synced collection, not a server-side query.
const searchFetchLimit = 500

type Service struct {
	client   *Client
	logger   *slog.Logger
	timeout  time.Duration
	retryCfg RetryConfig

	profiles *reqstate.Tracker[domain.ProfilePage]
	clicks   *reqstate.Tracker[domain.ClickReceipt]
	hero     *heropool.Selector

	cacheDisabled bool
	cacheCfg      listingCacheConfig
	cacheMu       sync.Mutex
	cache         map[string]*cachedListing
	redisCache    *RedisCacheBackend

	healthMu sync.Mutex
	health   backendHealth

	snippetBudget   int
	defaultPageSize int

	listingMu   sync.Mutex
	lastListing domain.ProfilePage
	currentPage int
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheCfg.cacheTTL = ttl
			s.cacheCfg.staleTTL = ttl * 3
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithHeroSelector(selector *heropool.Selector) ServiceOption {
	return func(s *Service) {
		if selector != nil {
			s.hero = selector
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		if cfg.MaxAttempts > 0 {
			s.retryCfg = cfg
		}
	}
}

func WithSnippetBudget(budget int) ServiceOption {
	return func(s *Service) {
		if budget > 0 {
			s.snippetBudget = budget
		}
	}
}

func WithDefaultPageSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.defaultPageSize = size
		}
	}
}

func NewService(client *Client, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	svc := &Service{
		client:          client,
		logger:          slog.Default(),
		timeout:         timeout,
		retryCfg:        DefaultRetryConfig(),
		profiles:        reqstate.NewTracker[domain.ProfilePage](),
		clicks:          reqstate.NewTracker[domain.ClickReceipt](),
		hero:            heropool.NewSelector(heropool.NewHTTPProber(nil, "")),
		cacheCfg:        defaultListingCacheConfig(),
		cache:           make(map[string]*cachedListing),
		snippetBudget:   defaultSnippetLength,
		defaultPageSize: defaultPageSize,
		currentPage:     1,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

const (
	defaultSnippetLength = 120
	defaultPageSize      = 12
)

// Profiles exposes the listing request-state tracker for watchers.
func (s *Service) Profiles() *reqstate.Tracker[domain.ProfilePage] { return s.profiles }

// Clicks exposes the click request-state tracker for watchers.
func (s *Service) Clicks() *reqstate.Tracker[domain.ClickReceipt] { return s.clicks }

// FetchProfiles synchronizes one listing page from the backend, tracked under
// OpProfilesList. The pending state is visible to watchers before the first
// network byte; the final state carries either the page or a flattened error.
func (s *Service) FetchProfiles(ctx context.Context, listQuery domain.ListQuery) (domain.ProfilePage, error) {
	listQuery = s.normalizeListQuery(listQuery)
	op := s.profiles.Begin(OpProfilesList)

	now := time.Now()
	if blocked, until, lastErr := s.backendBlocked(now); blocked {
		err := fmt.Errorf("%w: blocked until %s after repeated failures (%s)",
			ErrBackendUnavailable, until.Format(time.RFC3339), lastErr)
		op.Fail(flattenError(err))
		return domain.ProfilePage{}, err
	}

	cacheKey := buildListingCacheKey(listQuery)
	if !s.cacheDisabled {
		if cached, ok, needsRefresh := s.cacheLookup(cacheKey, now); ok {
			if needsRefresh {
				s.refreshListingAsync(cacheKey, listQuery)
			}
			s.rememberListing(cached, listQuery.Page)
			op.Succeed(cached)
			return cached, nil
		}
	}

	page, err := s.fetchListing(ctx, listQuery)
	if err != nil {
		s.logger.Warn("profile listing fetch failed", "page", listQuery.Page, "error", err)
		op.Fail(flattenError(err))
		return domain.ProfilePage{}, err
	}

	if !s.cacheDisabled {
		s.cacheStore(cacheKey, page, time.Now())
	}
	s.rememberListing(page, listQuery.Page)
	op.Succeed(page)
	return page, nil
}

// fetchListing is the uncached, untracked backend round trip with retry and
// health accounting.
func (s *Service) fetchListing(ctx context.Context, listQuery domain.ListQuery) (domain.ProfilePage, error) {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var page domain.ProfilePage
	startedAt := time.Now()
	err := RetryWithBackoff(runCtx, s.retryCfg, func() error {
		var callErr error
		page, callErr = s.client.ListProfiles(runCtx, listQuery)
		return callErr
	})
	s.recordBackendResult("list_profiles", err, time.Since(startedAt), time.Now())
	if err != nil {
		return domain.ProfilePage{}, err
	}
	return page, nil
}

func (s *Service) refreshListingAsync(cacheKey string, listQuery domain.ListQuery) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		page, err := s.fetchListing(ctx, listQuery)
		if err != nil {
			s.cacheClearRefreshing(cacheKey)
			return
		}
		s.cacheStore(cacheKey, page, time.Now())
	}()
}

// RecordClick sends one click write to the backend, tracked under
// OpProfilesClick. The click counter is server-owned, so a successful write
// invalidates every cached listing page.
func (s *Service) RecordClick(ctx context.Context, profileID string) (domain.ClickReceipt, error) {
	op := s.clicks.Begin(OpProfilesClick)

	now := time.Now()
	if blocked, until, lastErr := s.backendBlocked(now); blocked {
		err := fmt.Errorf("%w: blocked until %s after repeated failures (%s)",
			ErrBackendUnavailable, until.Format(time.RFC3339), lastErr)
		op.Fail(flattenError(err))
		return domain.ClickReceipt{}, err
	}

	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var receipt domain.ClickReceipt
	startedAt := time.Now()
	err := RetryWithBackoff(runCtx, s.retryCfg, func() error {
		var callErr error
		receipt, callErr = s.client.RecordClick(runCtx, profileID)
		return callErr
	})
	s.recordBackendResult("record_click", err, time.Since(startedAt), time.Now())
	if err != nil {
		s.logger.Warn("click write failed", "profile", profileID, "error", err)
		op.Fail(flattenError(err))
		return domain.ClickReceipt{}, err
	}

	s.cacheInvalidateAll()
	op.Succeed(receipt)
	return receipt, nil
}

// SearchProfiles runs the keyword search over the synced collection. An
// empty or whitespace-only query returns an empty result without touching
// the backend.
func (s *Service) SearchProfiles(ctx context.Context, query string) (domain.SearchResponse, error) {
	startedAt := time.Now()
	response := domain.SearchResponse{Query: query, Items: []domain.SearchMatch{}}

	searchWords := search.NormalizeQuery(query)
	if len(searchWords) == 0 {
		response.ElapsedMS = time.Since(startedAt).Milliseconds()
		return response, nil
	}

	profiles, err := s.collectionForSearch(ctx)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	ranked := search.Rank(query, profiles)
	response.Items = make([]domain.SearchMatch, 0, len(ranked))
	for _, profile := range ranked {
		response.Items = append(response.Items, domain.SearchMatch{
			Profile:  profile,
			NameRuns: search.Highlight(profile.Name, query),
			Snippet:  search.Snippet(profile.Description, s.snippetBudget),
			Score:    search.Score(profile, searchWords),
		})
	}
	response.TotalItems = len(response.Items)
	response.ElapsedMS = time.Since(startedAt).Milliseconds()
	return response, nil
}

// collectionForSearch reuses the last synced listing when present and falls
// back to one wide fetch otherwise.
func (s *Service) collectionForSearch(ctx context.Context) ([]domain.Profile, error) {
	s.listingMu.Lock()
	cached := s.lastListing.Profiles
	s.listingMu.Unlock()
	if len(cached) > 0 && s.lastListingCoversCollection() {
		return cached, nil
	}

	page, err := s.FetchProfiles(ctx, domain.ListQuery{Page: 1, Limit: searchFetchLimit})
	if err != nil {
		return nil, err
	}
	return page.Profiles, nil
}

func (s *Service) lastListingCoversCollection() bool {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	return s.lastListing.Pages <= 1 || len(s.lastListing.Profiles) >= s.lastListing.Total
}

// HeroImage picks the hero background image from the current collection's
// candidate pool. The selection is stable while the pool is unchanged.
func (s *Service) HeroImage(ctx context.Context) (string, error) {
	profiles, err := s.collectionForSearch(ctx)
	if err != nil {
		return "", err
	}
	return s.hero.Select(ctx, profiles)
}

// ChangePage validates a page switch against the last known page count and
// returns the page now current. Out-of-range requests keep the current page.
func (s *Service) ChangePage(requested int) int {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	s.currentPage = pagination.ChangePage(s.currentPage, requested, s.lastListing.Pages)
	return s.currentPage
}

// CurrentPage returns the page the listing view is on.
func (s *Service) CurrentPage() int {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	return s.currentPage
}

// PaginationMeta describes the current listing window.
func (s *Service) PaginationMeta() pagination.Meta {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	return pagination.Normalize(s.currentPage, s.defaultPageSize, s.lastListing.Pages, s.lastListing.Total)
}

func (s *Service) rememberListing(page domain.ProfilePage, requestedPage int) {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	s.lastListing = page
	if page.Page > 0 {
		s.currentPage = page.Page
	} else if requestedPage > 0 {
		s.currentPage = requestedPage
	}
}

func (s *Service) normalizeListQuery(listQuery domain.ListQuery) domain.ListQuery {
	if listQuery.Page <= 0 {
		listQuery.Page = 1
	}
	if listQuery.Limit <= 0 {
		listQuery.Limit = s.defaultPageSize
	}
	return listQuery
}

// RequestStates is the diagnostics payload: both trackers plus backend
// health, in one snapshot.
type RequestStates struct {
	Profiles map[string]reqstate.State[domain.ProfilePage]  `json:"profiles"`
	Clicks   map[string]reqstate.State[domain.ClickReceipt] `json:"clicks"`
	Backend  BackendDiagnostics                             `json:"backend"`
}

func (s *Service) RequestStatesSnapshot() RequestStates {
	return RequestStates{
		Profiles: s.profiles.Snapshot(),
		Clicks:   s.clicks.Snapshot(),
		Backend:  s.BackendDiagnosticsSnapshot(),
	}
}
