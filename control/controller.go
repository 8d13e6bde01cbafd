// Package control implements the controller runtime: the per-tick
// pipeline that ties the phase array, the ring-barrier scheduler, the
// call queue, and the field-bus and telemetry adapters together into
// one cooperatively-scheduled loop, plus the OFF/CET/CXT/LS_FLASH/NORMAL
// mode machine that governs it.
package control

import (
	"fmt"
	"log/slog"

	"signalhead.dev/bus"
	"signalhead.dev/call"
	"signalhead.dev/config"
	"signalhead.dev/loadswitch"
	"signalhead.dev/mode"
	"signalhead.dev/phase"
	"signalhead.dev/ring"
	"signalhead.dev/telemetry"
	"signalhead.dev/timing"
)

// staticRecall pairs a phase-configured Recall with the Machine it
// targets, so its assertion signal can be derived from that phase's own
// state rather than from a field-bus pin.
type staticRecall struct {
	recall *call.Recall
	phase  *phase.Machine
}

// detectorBinding maps one field-bus input pin to the vehicle or
// pedestrian detector call it represents.
type detectorBinding struct {
	pin    int
	target phase.ID
	ped    bool
}

// inputRecall is a field-bus-driven recall switch: while its pin is
// asserted (and not inhibited), it behaves as a maintained recall.
type inputRecall struct {
	pin    int
	recall *call.Recall
}

// pinTarget binds a field-bus pin to a phase for actions, like inhibit,
// that need a phase but no call-placement behavior of their own.
type pinTarget struct {
	pin    int
	target phase.ID
}

// Controller owns the entire runtime state of one intersection: the
// phase array, the call queue and its recall/random-actuation feeders,
// the ring-barrier scheduler, the current operating Mode, and the two
// adapters it exchanges frames with every tick. Only Controller's own
// methods, called from a single goroutine, ever mutate this state.
type Controller struct {
	log *slog.Logger

	clock *timing.Clock
	mode  mode.Mode

	phases    []*phase.Machine
	topo      ring.Topology
	scheduler *ring.Scheduler

	calls        *call.Queue
	recalls      []staticRecall
	random       *call.RandomActuator
	detectors    []detectorBinding
	inputRecalls []inputRecall
	inhibitPins  []pinTarget

	flashOverridePins []int
	timeFreezePins    []int

	detectorState map[phase.ID]bool
	servedPed     map[phase.ID]bool
	switchCount   int

	adapter   bus.Adapter
	publisher telemetry.Publisher

	busFailStreak *timing.HysteresisCounter
	busOKStreak   *timing.HysteresisCounter
	busFailSafe   bool

	steadyMode mode.Mode
	cetTimer   timing.IntervalTimer

	frozen    bool
	techFlash bool

	transferCount uint64
	demandTotal   float64
	demandTicks   uint64
	peakDemand    float64
}

// New builds a Controller from a validated configuration document, the
// field-bus adapter it will poll and send frames through, the
// telemetry sink it will publish snapshots to, and a structured logger.
// log may be nil, in which case slog.Default() is used.
func New(doc *config.Document, adapter bus.Adapter, publisher telemetry.Publisher, log *slog.Logger) (*Controller, error) {
	if errs := doc.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("control: new: %w", errs)
	}
	if log == nil {
		log = slog.Default()
	}

	phases := make([]*phase.Machine, 0, len(doc.Phases()))
	switchCount := 0
	for _, p := range doc.Phases() {
		phases = append(phases, phase.NewMachine(p))
		if n := int(p.Vehicle) + 1; n > switchCount {
			switchCount = n
		}
		if p.PedestrianCapable() {
			if n := int(p.Ped) + 1; n > switchCount {
				switchCount = n
			}
		}
	}

	initMode, err := doc.InitMode()
	if err != nil {
		return nil, fmt.Errorf("control: new: %w", err)
	}

	topo := doc.Topology()
	c := &Controller{
		log:           log,
		clock:         timing.NewClock(doc.TickSize),
		mode:          initMode,
		phases:        phases,
		topo:          topo,
		scheduler:     ring.NewScheduler(topo, doc.IdlePhases()),
		calls:         call.NewQueue(doc.CallConfig()),
		recalls:       buildStaticRecalls(doc, phases),
		random:        doc.RandomActuator(),
		adapter:       adapter,
		publisher:     publisher,
		busFailStreak: timing.NewHysteresisCounter(3),
		busOKStreak:   timing.NewHysteresisCounter(5),
		switchCount:   switchCount,
		detectorState: make(map[phase.ID]bool),
		servedPed:     make(map[phase.ID]bool),
	}

	for _, in := range doc.Inputs {
		switch in.Action {
		case "detector":
			c.detectors = append(c.detectors, detectorBinding{pin: in.Pin, target: phase.ID(in.Target), ped: in.Ped})
		case "recall":
			c.inputRecalls = append(c.inputRecalls, inputRecall{
				pin: in.Pin,
				recall: &call.Recall{
					Type:   call.RecallMaintained,
					Target: phase.ID(in.Target),
					Ped:    in.Ped,
					Weight: 1.0,
				},
			})
		case "inhibit":
			c.inhibitPins = append(c.inhibitPins, pinTarget{pin: in.Pin, target: phase.ID(in.Target)})
		case "flash_override":
			c.flashOverridePins = append(c.flashOverridePins, in.Pin)
		case "time_freeze":
			c.timeFreezePins = append(c.timeFreezePins, in.Pin)
		}
	}

	if initMode == mode.Cet {
		c.steadyMode = mode.Normal
		c.cetTimer.Load(doc.CETDelay())
	}

	return c, nil
}

func buildStaticRecalls(doc *config.Document, phases []*phase.Machine) []staticRecall {
	byID := make(map[phase.ID]*phase.Machine, len(phases))
	for _, m := range phases {
		byID[m.Phase().ID] = m
	}
	var out []staticRecall
	for _, r := range doc.Recalls() {
		if m, ok := byID[r.Target]; ok {
			out = append(out, staticRecall{recall: r, phase: m})
		}
	}
	return out
}

// Mode returns the controller's current operating mode.
func (c *Controller) Mode() mode.Mode {
	return c.mode
}

// ControlTime is the accumulated logical control time, in seconds.
func (c *Controller) ControlTime() float64 {
	return c.clock.ControlTime()
}

// BusFailSafe reports whether the controller has fallen back to
// LS_FLASH due to a consecutive-failure streak on the field bus.
func (c *Controller) BusFailSafe() bool {
	return c.busFailSafe
}

func (c *Controller) allPhasesAtStop() bool {
	for _, m := range c.phases {
		if !m.State().AtStop() {
			return false
		}
	}
	return true
}

func (c *Controller) outputVector() []loadswitch.Output {
	projMode := c.mode
	if c.techFlash {
		projMode = mode.LSFlash
	}
	pulseOn := int(c.clock.ControlTime()*2)%2 == 0

	out := make([]loadswitch.Output, c.switchCount)
	for _, m := range c.phases {
		p := m.Phase()
		out[p.Vehicle] = loadswitch.Vehicle(m.State(), p.Flash, projMode, pulseOn)
		if p.PedestrianCapable() {
			out[p.Ped] = loadswitch.Pedestrian(m.State(), projMode, pulseOn)
		}
	}
	return out
}
