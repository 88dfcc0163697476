package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ikimatch/internal/matching"
)

type reply struct {
	text string
	err  error
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	system  string
	message string
	block   bool
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.system = system
	f.message = message
	var r reply
	if len(f.replies) > 0 {
		r = f.replies[0]
		f.replies = f.replies[1:]
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (f *fakeGenerator) Model() string    { return "fake-model" }
func (f *fakeGenerator) Provider() string { return "fake" }

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]matching.Judgment
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]matching.Judgment{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]matching.Judgment, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	j, ok := c.entries[key]
	return j, ok, nil
}

func (c *memoryCache) Put(_ context.Context, key string, judgments []matching.Judgment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = judgments
	return nil
}

const okResponse = `{"matches": [{"profile_id": "a", "score": 88, "explanation": "Go and fintech.", "top_attributes": ["Go"]}]}`

var candidates = []matching.Summary{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}

func fastConfig() ScorerConfig {
	return ScorerConfig{Timeout: time.Second, MaxRetries: 1, Backoff: time.Millisecond}
}

func TestScorerReturnsParsedJudgments(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{text: okResponse}}}
	s := NewScorer(gen, nil, fastConfig(), zap.NewNop())

	got, err := s.Score(context.Background(), "go mentor", candidates)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if len(got) != 1 || got[0].ProfileID != "a" || got[0].Score != 88 {
		t.Fatalf("unexpected judgments: %+v", got)
	}
	if gen.system != SystemPrompt() {
		t.Fatalf("expected the system prompt to be sent")
	}
	want, _ := BuildUserContent("go mentor", candidates)
	if gen.message != want {
		t.Fatalf("unexpected user content %q", gen.message)
	}
}

func TestScorerRetriesRetryableFailureOnce(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{
		{err: matching.TransportError("gateway returned 503", true, nil)},
		{text: okResponse},
	}}
	s := NewScorer(gen, nil, fastConfig(), zap.NewNop())

	if _, err := s.Score(context.Background(), "q", candidates); err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if gen.callCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", gen.callCount())
	}
}

func TestScorerGivesUpAfterOneRetry(t *testing.T) {
	transient := matching.TransportError("gateway returned 503", true, nil)
	gen := &fakeGenerator{replies: []reply{{err: transient}, {err: transient}, {text: okResponse}}}
	cfg := fastConfig()
	cfg.MaxRetries = 5
	s := NewScorer(gen, nil, cfg, zap.NewNop())

	_, err := s.Score(context.Background(), "q", candidates)
	if matching.KindOf(err) != matching.KindTransport {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if gen.callCount() != 2 {
		t.Fatalf("expected retries clamped to one, got %d calls", gen.callCount())
	}
}

func TestScorerDoesNotRetryPermanentFailures(t *testing.T) {
	tests := map[string]reply{
		"non-retryable transport": {err: matching.TransportError("gateway returned 401", false, nil)},
		"unclassified error":      {err: errors.New("boom")},
		"malformed response":      {text: "not json at all"},
	}

	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{replies: []reply{r, {text: okResponse}}}
			s := NewScorer(gen, nil, fastConfig(), zap.NewNop())

			_, err := s.Score(context.Background(), "q", candidates)
			if err == nil {
				t.Fatalf("expected error")
			}
			if matching.KindOf(err) == "" {
				t.Fatalf("expected a classified error, got %v", err)
			}
			if gen.callCount() != 1 {
				t.Fatalf("expected a single call, got %d", gen.callCount())
			}
		})
	}
}

func TestScorerTimeout(t *testing.T) {
	gen := &fakeGenerator{block: true}
	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := NewScorer(gen, nil, cfg, zap.NewNop())

	_, err := s.Score(context.Background(), "q", candidates)
	if matching.KindOf(err) != matching.KindTransport || !matching.IsRetryable(err) {
		t.Fatalf("expected retryable transport timeout, got %v", err)
	}
	if gen.callCount() != 1 {
		t.Fatalf("expected no retry after the deadline, got %d calls", gen.callCount())
	}
}

func TestScorerCancelledContextIsNotRetryable(t *testing.T) {
	gen := &fakeGenerator{replies: []reply{{text: okResponse}}}
	s := NewScorer(gen, nil, fastConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Score(ctx, "q", candidates)
	if matching.KindOf(err) != matching.KindTransport || matching.IsRetryable(err) {
		t.Fatalf("expected non-retryable transport failure, got %v", err)
	}
}

func TestScorerUsesCache(t *testing.T) {
	cache := newMemoryCache()
	gen := &fakeGenerator{replies: []reply{{text: okResponse}}}
	s := NewScorer(gen, cache, fastConfig(), zap.NewNop())

	first, err := s.Score(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("first Score returned error: %v", err)
	}
	second, err := s.Score(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("second Score returned error: %v", err)
	}

	if gen.callCount() != 1 {
		t.Fatalf("expected the second search to hit the cache, got %d calls", gen.callCount())
	}
	if len(second) != len(first) || second[0].ProfileID != first[0].ProfileID {
		t.Fatalf("cached judgments differ: %+v vs %+v", first, second)
	}
}

func TestScorerIgnoresCacheErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	gen := &fakeGenerator{replies: []reply{{text: okResponse}}}
	s := NewScorer(gen, cache, fastConfig(), zap.New(core))

	if _, err := s.Score(context.Background(), "q", candidates); err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if logs.FilterMessage("judgment cache lookup failed").Len() != 1 {
		t.Fatalf("expected cache failure to be logged")
	}
}

func TestScorerLogsDroppedJudgments(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	gen := &fakeGenerator{replies: []reply{{text: `{"matches": [{"profile_id": "ghost", "score": 90, "explanation": "x"}]}`}}}
	s := NewScorer(gen, nil, fastConfig(), zap.New(core))

	got, err := s.Score(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no judgments, got %+v", got)
	}

	entries := logs.FilterMessage("judgment dropped").All()
	if len(entries) != 1 {
		t.Fatalf("expected one dropped judgment log, got %d", len(entries))
	}
	if reason := entries[0].ContextMap()["reason"]; reason != matching.ReasonUnknownProfile {
		t.Fatalf("unexpected reason %v", reason)
	}
}

func TestCacheKeyDependsOnEveryInput(t *testing.T) {
	base := CacheKey("m", "s", "u")
	if base != CacheKey("m", "s", "u") {
		t.Fatalf("cache key is not stable")
	}
	for _, other := range []string{CacheKey("m2", "s", "u"), CacheKey("m", "s2", "u"), CacheKey("m", "s", "u2"), CacheKey("ms", "", "u")} {
		if other == base {
			t.Fatalf("cache key collision")
		}
	}
}
