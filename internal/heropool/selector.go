// Package heropool picks the hero background image from the profile
// collection. Candidates are probed for reachability in parallel, broken
// URLs are remembered for the lifetime of the process, and a selection stays
// stable until the candidate set itself changes.
package heropool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"memberdir/syncservice/internal/domain"
	"memberdir/syncservice/internal/metrics"
)

const defaultMaxConcurrentProbes = 8

type Selector struct {
	prober        Prober
	maxConcurrent int64
	pick          func(n int) int

	mu            sync.Mutex
	broken        map[string]struct{}
	lastIdentity  string
	lastSelection string
}

type SelectorOption func(*Selector)

func WithMaxConcurrentProbes(n int64) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithPickFunc overrides the random index choice; tests use it to make the
// selection deterministic.
func WithPickFunc(pick func(n int) int) SelectorOption {
	return func(s *Selector) {
		if pick != nil {
			s.pick = pick
		}
	}
}

func NewSelector(prober Prober, opts ...SelectorOption) *Selector {
	s := &Selector{
		prober:        prober,
		maxConcurrent: defaultMaxConcurrentProbes,
		pick:          rand.Intn,
		broken:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool extracts the ordered, de-duplicated candidate image URLs from the
// profile collection.
func Pool(profiles []domain.Profile) []string {
	seen := make(map[string]struct{}, len(profiles))
	urls := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		candidate := strings.TrimSpace(profile.ProfileImage)
		if candidate == "" {
			continue
		}
		if _, exists := seen[candidate]; exists {
			continue
		}
		seen[candidate] = struct{}{}
		urls = append(urls, candidate)
	}
	return urls
}

// PoolIdentity is the content hash of the ordered candidate set. Selection is
// recomputed only when this identity changes; unrelated state churn that
// re-derives the same pool leaves the selection untouched.
func PoolIdentity(urls []string) string {
	sum := sha256.Sum256([]byte(strings.Join(urls, "\n")))
	return hex.EncodeToString(sum[:])
}

// Select returns the hero image URL for the current profile collection, or
// "" when no candidate is reachable. The previous selection is avoided when
// at least one alternative survived probing; a single survivor is re-selected
// even if it was the previous choice.
func (s *Selector) Select(ctx context.Context, profiles []domain.Profile) (string, error) {
	urls := Pool(profiles)
	identity := PoolIdentity(urls)

	s.mu.Lock()
	if identity == s.lastIdentity {
		selection := s.lastSelection
		s.mu.Unlock()
		return selection, nil
	}
	previous := s.lastSelection
	pending := make([]string, 0, len(urls))
	for _, candidate := range urls {
		if _, bad := s.broken[candidate]; bad {
			continue
		}
		pending = append(pending, candidate)
	}
	s.mu.Unlock()

	valid, failed, err := s.probeAll(ctx, pending)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candidate := range failed {
		s.broken[candidate] = struct{}{}
	}
	s.lastIdentity = identity

	if len(valid) == 0 {
		s.lastSelection = ""
		return "", nil
	}

	candidates := valid
	if previous != "" && len(valid) > 1 {
		filtered := make([]string, 0, len(valid))
		for _, candidate := range valid {
			if candidate != previous {
				filtered = append(filtered, candidate)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}
	s.lastSelection = candidates[s.pick(len(candidates))]
	metrics.HeroSelectionsTotal.Inc()
	return s.lastSelection, nil
}

// probeAll fans out one probe per candidate with bounded concurrency and
// joins before partitioning by outcome. Probe failures are data, not errors;
// the only error path is context cancellation.
func (s *Selector) probeAll(ctx context.Context, candidates []string) (valid, failed []string, err error) {
	if len(candidates) == 0 {
		return nil, nil, ctx.Err()
	}

	results := make([]bool, len(candidates))
	sem := semaphore.NewWeighted(s.maxConcurrent)
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(index int, imageURL string) {
			defer wg.Done()
			if acquireErr := sem.Acquire(ctx, 1); acquireErr != nil {
				return
			}
			defer sem.Release(1)

			probeErr := s.prober.Probe(ctx, imageURL)
			if probeErr == nil {
				results[index] = true
				metrics.ImageProbesTotal.WithLabelValues("ok").Inc()
				return
			}
			metrics.ImageProbesTotal.WithLabelValues("unreachable").Inc()
		}(i, candidate)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}
	for i, candidate := range candidates {
		if results[i] {
			valid = append(valid, candidate)
		} else {
			failed = append(failed, candidate)
		}
	}
	return valid, failed, nil
}

// Selection returns the currently displayed choice without probing.
func (s *Selector) Selection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSelection
}

// KnownBroken reports whether a URL has already failed a probe this session.
func (s *Selector) KnownBroken(imageURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, bad := s.broken[strings.TrimSpace(imageURL)]
	return bad
}
