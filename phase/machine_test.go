package phase

import "testing"

func basicPhase() Phase {
	return Phase{
		ID:      3,
		Flash:   FlashYellow,
		Vehicle: 2,
		Ped:     NoLoadSwitch,
		Timing: Timing{
			MinStop: 0,
			Rclr:    1.0,
			Caution: 4.0,
			Extend:  3.0,
			Go:      12.5,
			MaxGo:   23,
		},
	}
}

// TestSingleCallMinorStreet covers the base case: a single vehicle call
// granted on a phase with no pedestrian indication, with no further
// detections, serves exactly its minimum green then clears.
func TestSingleCallMinorStreet(t *testing.T) {
	m := NewMachine(basicPhase())
	const dt = 0.1

	tr := m.Advance(dt, Grant{Serve: true}, Input{})
	if tr.To != Go {
		t.Fatalf("after grant, state = %v, want GO", tr.To)
	}

	ticksToGoExpiry := int(12.5/dt) - 1
	for i := 0; i < ticksToGoExpiry; i++ {
		tr := m.Advance(dt, Grant{}, Input{})
		if tr.To != Go {
			t.Fatalf("tick %d: state = %v, want GO (held too briefly)", i, tr.To)
		}
	}

	tr = m.Advance(dt, Grant{}, Input{})
	if tr.To != Caution {
		t.Fatalf("after go expiry, state = %v, want CAUTION", tr.To)
	}

	for m.State() == Caution {
		m.Advance(dt, Grant{}, Input{})
	}
	if m.State() != Rclr {
		t.Fatalf("state after CAUTION = %v, want RCLR", m.State())
	}

	var tr2 Transition
	for m.State() == Rclr {
		tr2 = m.Advance(dt, Grant{}, Input{})
	}
	if m.State() != MinStop {
		t.Fatalf("state after RCLR = %v, want MIN_STOP", m.State())
	}
	if !tr2.CompletedService {
		t.Fatal("RCLR->MIN_STOP transition should report CompletedService")
	}
	if tr2.PedServed {
		t.Fatal("phase has no ped indication; PedServed must be false")
	}

	for m.State() == MinStop {
		m.Advance(dt, Grant{}, Input{})
	}
	if m.State() != Stop {
		t.Fatalf("state after MIN_STOP = %v, want STOP", m.State())
	}
}

// TestGapOut checks that a detector asserted once every 6s (longer than
// the 5s extend interval) lets the phase gap out instead of maxing out.
func TestGapOut(t *testing.T) {
	p := basicPhase()
	p.Timing.Go = 10
	p.Timing.Extend = 5
	p.Timing.MaxGo = 23
	m := NewMachine(p)
	const dt = 0.1

	m.Advance(dt, Grant{Serve: true}, Input{})
	ticks := 0
	detectorEvery := int(6 / dt)
	for m.State() == Go || m.State() == Extend {
		detect := ticks%detectorEvery == 0 && ticks > 0
		m.Advance(dt, Grant{}, Input{Detector: detect})
		ticks++
		if ticks > 1000 {
			t.Fatal("state machine never reached CAUTION")
		}
	}
	if m.State() != Caution {
		t.Fatalf("final state = %v, want CAUTION (gap-out)", m.State())
	}
	if m.ServiceElapsed() >= p.Timing.MaxGo {
		t.Fatalf("gap-out should end before max_go: elapsed = %v", m.ServiceElapsed())
	}
}

// TestMaxOut mirrors scenario 3's max-out branch: detections every 3s
// (shorter than the 5s extend interval) keep re-arming EXTEND until
// max_go forces CAUTION regardless of continued detection.
func TestMaxOut(t *testing.T) {
	p := basicPhase()
	p.Timing.Go = 10
	p.Timing.Extend = 5
	p.Timing.MaxGo = 23
	m := NewMachine(p)
	const dt = 0.1

	m.Advance(dt, Grant{Serve: true}, Input{})
	ticks := 0
	detectorEvery := int(3 / dt)
	for m.State() == Go || m.State() == Extend {
		detect := ticks%detectorEvery == 0
		m.Advance(dt, Grant{}, Input{Detector: detect})
		ticks++
		if ticks > 1000 {
			t.Fatal("state machine never reached CAUTION")
		}
	}
	if m.State() != Caution {
		t.Fatalf("final state = %v, want CAUTION (max-out)", m.State())
	}
	if got, want := m.ServiceElapsed(), p.Timing.MaxGo; got != want {
		t.Fatalf("max-out should stop exactly at max_go: elapsed = %v, want %v", got, want)
	}
}

func TestPedestrianCycle(t *testing.T) {
	p := basicPhase()
	p.Ped = 5
	p.Timing.Walk = 7
	p.Timing.Pclr = 6
	m := NewMachine(p)
	const dt = 0.1

	tr := m.Advance(dt, Grant{Serve: true, Ped: true}, Input{})
	if tr.To != Walk {
		t.Fatalf("state after ped grant = %v, want WALK", tr.To)
	}
	for m.State() == Walk {
		m.Advance(dt, Grant{}, Input{})
	}
	if m.State() != Pclr {
		t.Fatalf("state after WALK = %v, want PCLR", m.State())
	}
	for m.State() == Pclr {
		m.Advance(dt, Grant{}, Input{})
	}
	if m.State() != Go {
		t.Fatalf("state after PCLR = %v, want GO", m.State())
	}
}

func TestPedestrianYieldSkipsGo(t *testing.T) {
	p := basicPhase()
	p.Ped = 5
	p.Timing.Walk = 2
	p.Timing.Pclr = 2
	m := NewMachine(p)
	const dt = 0.1

	m.Advance(dt, Grant{Serve: true, Ped: true}, Input{})
	for m.State() == Walk {
		m.Advance(dt, Grant{}, Input{})
	}
	var tr Transition
	for m.State() == Pclr {
		tr = m.Advance(dt, Grant{Yield: true}, Input{})
	}
	if tr.To != Caution {
		t.Fatalf("yield at PCLR expiry should go to CAUTION, got %v", tr.To)
	}
}

func TestZeroMinStopDwellsExactlyOneTick(t *testing.T) {
	p := basicPhase()
	p.Timing.MinStop = 0
	m := NewMachine(p)
	m.state = MinStop
	m.interval.Load(0)

	tr := m.Advance(0.1, Grant{}, Input{})
	if tr.To != Stop {
		t.Fatalf("zero-length MIN_STOP should clear after one tick, got %v", tr.To)
	}
}

func TestStopHoldsWithoutGrant(t *testing.T) {
	m := NewMachine(basicPhase())
	for i := 0; i < 50; i++ {
		tr := m.Advance(0.1, Grant{}, Input{})
		if tr.To != Stop {
			t.Fatalf("phase should not leave STOP without a grant, got %v", tr.To)
		}
	}
}
