package control

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"signalhead.dev/bus"
	"signalhead.dev/config"
	"signalhead.dev/loadswitch"
	"signalhead.dev/phase"
	"signalhead.dev/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fourPhaseDoc builds a minimal two-ring, two-barrier intersection:
// ring 0 serves {2, 4}, ring 1 serves {6, 8}; barrier 0 is {2, 6},
// barrier 1 is {4, 8}. Timing is kept small so tests run in a handful
// of ticks.
func fourPhaseDoc() *config.Document {
	return &config.Document{
		Schema:   4,
		TickSize: 1.0,
		Init:     config.InitConfig{Mode: "normal"},
		PhaseConfigs: []config.PhaseConfig{
			{ID: 2, Vehicle: 0, Rclr: 1, Caution: 2, Extend: 1, Go: 3, MaxGo: 20},
			{ID: 4, Vehicle: 1, Rclr: 1, Caution: 2, Extend: 1, Go: 3, MaxGo: 20},
			{ID: 6, Vehicle: 2, Rclr: 1, Caution: 2, Extend: 1, Go: 3, MaxGo: 20},
			{ID: 8, Vehicle: 3, Rclr: 1, Caution: 2, Extend: 1, Go: 3, MaxGo: 20},
		},
		Rings:    [][]int{{2, 4}, {6, 8}},
		Barriers: [][]int{{2, 6}, {4, 8}},
	}
}

func newTestController(t *testing.T, doc *config.Document) (*Controller, *bus.Loopback, *telemetry.MemoryPublisher) {
	t.Helper()
	lb := bus.NewLoopback()
	pub := telemetry.NewMemoryPublisher()
	c, err := New(doc, lb, pub, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, lb, pub
}

func TestNewRejectsInvalidDocument(t *testing.T) {
	doc := fourPhaseDoc()
	doc.Init.Mode = "bogus"
	if _, err := New(doc, bus.NewLoopback(), telemetry.NewMemoryPublisher(), testLogger()); err == nil {
		t.Fatal("New() should reject an invalid document")
	}
}

func TestOffModeProjectsDarkOutputs(t *testing.T) {
	doc := fourPhaseDoc()
	doc.Init.Mode = "off"
	c, lb, _ := newTestController(t, doc)

	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	for i, o := range lb.Last().Switches {
		if o != (loadswitch.Output{}) {
			t.Fatalf("switch %d = %+v, want dark in OFF", i, o)
		}
	}
}

func TestTimeFreezeHaltsPhaseTimersNotCallIntake(t *testing.T) {
	doc := fourPhaseDoc()
	doc.Inputs = []config.InputConfig{
		{Pin: 0, Target: 2, Action: "detector"},
		{Pin: 1, Action: "time_freeze"},
	}
	c, lb, _ := newTestController(t, doc)

	// Freeze immediately, before phase 2 ever leaves STOP.
	lb.Inject(bus.InboundFrame{Levels: []bool{true, true}})
	if err := c.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if !c.frozen {
		t.Fatal("expected controller to report frozen")
	}
	if !c.calls.HasUnservedCall(2, false) {
		t.Fatal("call intake should remain active while frozen")
	}
	m := findTestMachine(c, 2)
	if m.State() != phase.Stop {
		t.Fatalf("phase should still be STOP (frozen before first grant), got %v", m.State())
	}
}

func TestApplyConfigRejectedMidCycle(t *testing.T) {
	doc := fourPhaseDoc()
	doc.Inputs = []config.InputConfig{{Pin: 0, Target: 2, Action: "detector"}}
	c, lb, _ := newTestController(t, doc)

	lb.Inject(bus.InboundFrame{Levels: []bool{true}})
	for i := 0; i < 2; i++ {
		if err := c.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}
	if findTestMachine(c, 2).State().AtStop() {
		t.Fatal("test setup: phase 2 should be mid-service for this test to be meaningful")
	}

	if err := c.ApplyConfig(fourPhaseDoc()); err == nil {
		t.Fatal("ApplyConfig() should be rejected mid-cycle")
	}
}

func TestApplyConfigAcceptedWhenOff(t *testing.T) {
	doc := fourPhaseDoc()
	doc.Init.Mode = "off"
	c, _, _ := newTestController(t, doc)

	next := fourPhaseDoc()
	next.Init.Mode = "off"
	next.Defaults.Go = 9
	if err := c.ApplyConfig(next); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
}

func TestCheckBarrierInvariantDetectsCrossBarrierConflict(t *testing.T) {
	doc := fourPhaseDoc()
	c, _, _ := newTestController(t, doc)

	// Force two phases from different barriers into GO directly
	// through the Machine API, bypassing the scheduler, to exercise
	// the invariant check in isolation.
	m2 := findTestMachine(c, 2) // barrier 0
	m4 := findTestMachine(c, 4) // barrier 1
	m2.Advance(1, phase.Grant{Serve: true}, phase.Input{})
	m4.Advance(1, phase.Grant{Serve: true}, phase.Input{})

	if err := c.checkBarrierInvariant(); err == nil {
		t.Fatal("expected an invariant violation for concurrent cross-barrier service")
	}
}

func TestCheckBarrierInvariantAllowsSameBarrierConcurrency(t *testing.T) {
	doc := fourPhaseDoc()
	c, _, _ := newTestController(t, doc)

	m2 := findTestMachine(c, 2) // barrier 0
	m6 := findTestMachine(c, 6) // barrier 0
	m2.Advance(1, phase.Grant{Serve: true}, phase.Input{})
	m6.Advance(1, phase.Grant{Serve: true}, phase.Input{})

	if err := c.checkBarrierInvariant(); err != nil {
		t.Fatalf("same-barrier concurrency should not violate the invariant: %v", err)
	}
}

func findTestMachine(c *Controller, id phase.ID) *phase.Machine {
	for _, m := range c.phases {
		if m.Phase().ID == id {
			return m
		}
	}
	return nil
}

