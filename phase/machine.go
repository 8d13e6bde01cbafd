package phase

import "signalhead.dev/timing"

// Grant is the scheduler's per-tick instruction to a phase: whether it
// may leave STOP, whether that service should include the pedestrian
// indication, and whether it should yield straight to clearance instead
// of serving vehicle green (used when ending a pedestrian phase early to
// cross a barrier).
type Grant struct {
	Serve bool
	Ped   bool
	Yield bool
}

// Input is the per-tick detector state relevant to one phase's state
// machine: whether a vehicle call/detector is currently asserted for it.
// The call queue, not the machine, decides what counts as "asserted";
// the machine only needs the boolean.
type Input struct {
	Detector bool
}

// Transition describes what happened to a Machine during one Advance
// call.
type Transition struct {
	From, To         State
	CompletedService bool // true the tick the phase returns to MIN_STOP after RCLR.
	PedServed        bool // whether the completed service included the pedestrian indication.
}

// Machine is the per-phase state machine: one State, its two timers, and
// the bookkeeping needed to honor min_stop, max_go, and gap-out/max-out.
type Machine struct {
	phase  Phase
	state  State
	status Status

	interval timing.IntervalTimer
	service  timing.UpCounter

	servingPed bool
}

// NewMachine creates a Machine for p, starting at STOP.
func NewMachine(p Phase) *Machine {
	return &Machine{phase: p, state: Stop}
}

// Phase returns the static configuration of the phase this machine
// drives.
func (m *Machine) Phase() Phase {
	return m.phase
}

// State is the phase's current State.
func (m *Machine) State() State {
	return m.state
}

// Status is the scheduler-assigned Status. The scheduler, not the
// machine, owns this field; see SetStatus.
func (m *Machine) Status() Status {
	return m.status
}

// SetStatus is called by the ring-barrier scheduler to record its
// assignment for this phase. The machine never assigns its own status.
func (m *Machine) SetStatus(s Status) {
	m.status = s
}

// TimeUpper and TimeLower expose the active interval's target and
// current values, in seconds, for telemetry display.
func (m *Machine) TimeUpper() float64 {
	return m.interval.Loaded()
}

func (m *Machine) TimeLower() float64 {
	return m.interval.Remaining()
}

// ServiceElapsed is the cumulative GO+EXTEND time served so far this
// cycle.
func (m *Machine) ServiceElapsed() float64 {
	return m.service.Elapsed()
}

// Advance steps the machine forward by one tick of size dt, honoring
// grant and input, and returns what happened. Advance must be called at
// most once per tick per phase; the caller (package control) is
// responsible for not calling it while the controller is frozen or in a
// mode that suppresses phase advancement.
func (m *Machine) Advance(dt float64, grant Grant, input Input) Transition {
	from := m.state
	t := m.phase.Timing

	switch m.state {
	case Stop:
		if grant.Serve {
			if m.phase.PedestrianCapable() && grant.Ped && t.Walk > 0 {
				m.enter(Walk, t.Walk)
				m.servingPed = true
			} else {
				m.enterGo(t)
				m.servingPed = false
			}
		}

	case MinStop:
		if m.interval.Tick(dt) {
			m.state = Stop
		}

	case Walk:
		if m.interval.Tick(dt) {
			m.enter(Pclr, t.Pclr)
		}

	case Pclr:
		if m.interval.Tick(dt) {
			if grant.Yield {
				m.enter(Caution, t.Caution)
			} else {
				m.enterGo(t)
			}
		}

	case Go:
		atCap := m.service.Tick(dt)
		goExpired := m.interval.Tick(dt)
		switch {
		case atCap:
			m.enter(Caution, t.Caution)
		case input.Detector:
			m.enter(Extend, t.Extend)
		case goExpired:
			m.enter(Caution, t.Caution)
		}

	case Extend:
		atCap := m.service.Tick(dt)
		extendExpired := m.interval.Tick(dt)
		switch {
		case atCap:
			m.enter(Caution, t.Caution)
		case input.Detector:
			m.interval.Load(t.Extend)
		case extendExpired:
			m.enter(Caution, t.Caution)
		}

	case Caution:
		if m.interval.Tick(dt) {
			m.enter(Rclr, t.Rclr)
		}

	case Rclr:
		if m.interval.Tick(dt) {
			m.enter(MinStop, t.MinStop)
			tr := Transition{
				From:             from,
				To:               m.state,
				CompletedService: true,
				PedServed:        m.servingPed,
			}
			m.servingPed = false
			return tr
		}
	}

	return Transition{From: from, To: m.state}
}

func (m *Machine) enter(s State, interval float64) {
	m.state = s
	m.interval.Load(interval)
}

func (m *Machine) enterGo(t Timing) {
	m.state = Go
	m.interval.Load(t.Go)
	m.service.Reset(t.MaxGo)
}
