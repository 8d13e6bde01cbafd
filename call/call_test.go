package call

import (
	"testing"

	"signalhead.dev/phase"
)

func testConfig() Config {
	return Config{
		MaxAge:             100,
		DuplicateFactor:    0.5,
		SystemWeight:       1.0,
		ActiveBarrierBonus: 2.0,
	}
}

func TestPlaceDeduplicates(t *testing.T) {
	q := NewQueue(testConfig())
	q.Place(2, false, SourceDetector, 1.0)
	q.Place(2, false, SourceDetector, 1.0)

	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (duplicate should bump, not append)", q.Len())
	}
	ranked := q.Ranked(nil)
	if len(ranked) != 1 {
		t.Fatalf("Ranked() len = %d, want 1", len(ranked))
	}
	if got, want := ranked[0].Weight, 1.5; got != want {
		t.Fatalf("duplicate weight = %v, want %v", got, want)
	}
}

func TestPlaceDistinguishesPedBit(t *testing.T) {
	q := NewQueue(testConfig())
	q.Place(2, false, SourceDetector, 1.0)
	q.Place(2, true, SourceDetector, 1.0)
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (vehicle and ped calls are distinct)", q.Len())
	}
}

func TestAgeEvictsPastMaxAge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAge = 1.0
	q := NewQueue(cfg)
	q.Place(2, false, SourceDetector, 1.0)

	q.Age(0.5)
	if q.Len() != 1 {
		t.Fatalf("Len() after 0.5s = %d, want 1", q.Len())
	}
	q.Age(0.6)
	if q.Len() != 0 {
		t.Fatalf("Len() after max_age elapsed = %d, want 0", q.Len())
	}
}

func TestServedRemovedOnNextAge(t *testing.T) {
	q := NewQueue(testConfig())
	q.Place(2, false, SourceDetector, 1.0)
	q.Served(2, false)

	if q.HasUnservedCall(2, false) {
		t.Fatal("served call should no longer count as unserved")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() before Age() = %d, want 1 (row lingers until next Age pass)", q.Len())
	}
	q.Age(0.1)
	if q.Len() != 0 {
		t.Fatalf("Len() after Age() = %d, want 0", q.Len())
	}
}

func TestServedAllowsFreshCall(t *testing.T) {
	q := NewQueue(testConfig())
	q.Place(2, false, SourceDetector, 1.0)
	q.Served(2, false)
	q.Place(2, false, SourceDetector, 3.0)

	if !q.HasUnservedCall(2, false) {
		t.Fatal("new call after service should be unserved")
	}
	ranked := q.Ranked(nil)
	if len(ranked) != 1 {
		t.Fatalf("Ranked() len = %d, want 1 (only the fresh call is unserved)", len(ranked))
	}
	if got, want := ranked[0].Weight, 3.0; got != want {
		t.Fatalf("fresh call weight = %v, want %v (not merged with served row)", got, want)
	}
}

func TestRankedPriorityOrderAndTieBreak(t *testing.T) {
	q := NewQueue(testConfig())
	q.Place(4, false, SourceDetector, 1.0)
	q.Place(2, false, SourceDetector, 1.0)
	q.Place(6, false, SourceDetector, 5.0)

	ranked := q.Ranked(nil)
	if len(ranked) != 3 {
		t.Fatalf("Ranked() len = %d, want 3", len(ranked))
	}
	if ranked[0].Target != 6 {
		t.Fatalf("highest-weight call should rank first, got target %d", ranked[0].Target)
	}
	// Phases 2 and 4 tie on weight; smaller id breaks the tie.
	if ranked[1].Target != 2 || ranked[2].Target != 4 {
		t.Fatalf("tie-break order = [%d %d], want [2 4]", ranked[1].Target, ranked[2].Target)
	}
}

func TestRankedActiveBarrierBonus(t *testing.T) {
	q := NewQueue(testConfig())
	q.Place(2, false, SourceDetector, 1.0)
	q.Place(4, false, SourceDetector, 1.0)

	inBarrier := func(p phase.ID) bool { return p == 4 }
	ranked := q.Ranked(inBarrier)
	if ranked[0].Target != 4 {
		t.Fatalf("phase in active barrier should outrank equal-weight phase outside it, got %d first", ranked[0].Target)
	}
}

func TestMaintainedRecallReassertsEveryTick(t *testing.T) {
	q := NewQueue(testConfig())
	r := &Recall{Type: RecallMaintained, Target: 2, Weight: 1.0}

	r.Tick(true, q)
	q.Served(2, false)
	r.Tick(true, q)

	if !q.HasUnservedCall(2, false) {
		t.Fatal("maintained recall should re-place its call while input stays asserted")
	}
}

func TestLatchedRecallFiresOnceUntilServed(t *testing.T) {
	q := NewQueue(testConfig())
	r := &Recall{Type: RecallLatched, Target: 2, Weight: 1.0}

	r.Tick(true, q)
	r.Tick(true, q) // still asserted, no new edge: must not re-place
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (latched recall should not re-fire while held)", q.Len())
	}

	r.Tick(false, q) // input drops
	q.Served(2, false)
	r.NotifyServed(2, false)
	r.Tick(true, q) // fresh rising edge after service

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (fresh edge after service should re-arm)", q.Len())
	}
}

func TestLatchedRecallWaitsForServiceBeforeRearming(t *testing.T) {
	q := NewQueue(testConfig())
	r := &Recall{Type: RecallLatched, Target: 2, Weight: 1.0}

	r.Tick(true, q)
	r.Tick(false, q)
	r.Tick(true, q) // second rising edge, but original call never served

	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (must not re-arm before the first call is served)", q.Len())
	}
}

func TestRandomActuatorIsDeterministic(t *testing.T) {
	targets := []phase.ID{2, 4, 6, 8}
	run := func() []phase.ID {
		q := NewQueue(testConfig())
		a := NewRandomActuator(42, 5, 15, targets, 1.0)
		var seen []phase.ID
		for i := 0; i < 2000; i++ {
			before := q.Len()
			a.Tick(0.1, q)
			if q.Len() > before {
				r := q.Ranked(nil)
				seen = append(seen, r[len(r)-1].Target)
				q.Served(r[len(r)-1].Target, false)
				q.Age(0.1)
			}
		}
		return seen
	}

	a, b := run(), run()
	if len(a) == 0 {
		t.Fatal("random actuator never placed a call in 200s of simulated time")
	}
	if len(a) != len(b) {
		t.Fatalf("two runs with the same seed produced different call counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("two runs with the same seed diverged at call %d: %d vs %d", i, a[i], b[i])
		}
	}
}
