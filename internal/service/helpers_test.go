package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/board-api/internal/config"
	"github.com/spec-kit/board-api/internal/events"
	"github.com/spec-kit/board-api/internal/persistence"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) count(eventType events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type tokenFixture struct {
	svc    *TokenService
	mr     *miniredis.Miniredis
	clock  *testClock
	cfg    config.AuthConfig
	events *recordedEvents
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		DeviceIDTTL:        24 * time.Hour,
		AccessCookieName:   "access_token",
		RefreshCookieName:  "refresh_token",
		DeviceCookieName:   "ino",
		AccessKeyPrefix:    "access:",
		RefreshKeyPrefix:   "refresh:",
		TokenPrefix:        "Bearer:",
		TokenPurpose:       "auth",
		BcryptCost:         4,
	}
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	return newTokenFixtureWithCache(t, nil)
}

// newTokenFixtureWithCache lets a test interpose on the Redis-backed cache.
func newTokenFixtureWithCache(t *testing.T, wrap func(SessionCache) SessionCache) *tokenFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{now: time.Now()}
	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventSessionIssued, events.EventSessionRotated,
		events.EventSessionRevoked, events.EventTheftDetected,
	} {
		dispatcher.Subscribe(et, recorded.handle)
	}

	var cache SessionCache = persistence.NewRedisSessionCache(client, time.Second)
	if wrap != nil {
		cache = wrap(cache)
	}

	cfg := testAuthConfig()
	svc := NewTokenService(cfg, TokenDependencies{
		Cache:  cache,
		Events: dispatcher,
		Now:    clock.Now,
	})
	return &tokenFixture{svc: svc, mr: mr, clock: clock, cfg: cfg, events: recorded}
}

func (f *tokenFixture) accessKey(deviceID, subjectID string) string {
	return f.cfg.AccessKeyPrefix + deviceID + subjectID
}

func (f *tokenFixture) refreshKey(deviceID, subjectID string) string {
	return f.cfg.RefreshKeyPrefix + deviceID + subjectID
}

func (f *tokenFixture) raw(transport string) string {
	return strings.TrimPrefix(transport, f.cfg.TokenPrefix)
}
