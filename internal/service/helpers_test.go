package service

import (
	"testing"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/eventbus"
	"github.com/yuqie6/ChoreQuest/internal/testutil"
	"gorm.io/gorm"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)}
}

func testRules() *Rules {
	r := DefaultRules()
	r.Location = time.UTC
	return r
}

type engineFixture struct {
	engine *GameEngine
	clock  *fakeClock
	db     *gorm.DB
	hub    *eventbus.Hub
	repos  Repos
}

func newEngineFixture(t *testing.T, rules *Rules) *engineFixture {
	t.Helper()
	if rules == nil {
		rules = testRules()
	}
	db := testutil.OpenTestDB(t)
	clock := newFakeClock()
	hub := eventbus.NewHub()
	store := NewStore(db)
	engine, err := NewGameEngine(store, rules, WithClock(clock.Now), WithEventHub(hub))
	if err != nil {
		t.Fatalf("NewGameEngine error: %v", err)
	}
	return &engineFixture{engine: engine, clock: clock, db: db, hub: hub, repos: store.Repos()}
}
