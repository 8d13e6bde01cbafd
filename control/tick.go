package control

import (
	"context"
	"fmt"

	"signalhead.dev/bus"
	"signalhead.dev/mode"
	"signalhead.dev/phase"
)

// Tick executes one control cycle, in order: (a) poll the field bus,
// (b) apply inputs to the call queue and operator overrides, (c) age
// the call queue, (d) advance the CET delay and run the ring-barrier
// scheduler, (e) advance every phase's state machine, (f) mark served
// calls, (g) project load-switch outputs, (h) send them, and (i)
// publish a telemetry snapshot.
//
// Tick returns a wrapped error only for a scheduler invariant violation:
// every other failure — a bus retry, a telemetry disconnect — is
// absorbed internally and surfaced solely through the published
// Snapshot's StateFlags.
func (c *Controller) Tick(ctx context.Context) error {
	dt := c.clock.TickSize()
	for id := range c.servedPed {
		delete(c.servedPed, id)
	}

	frame, pollErr := c.adapter.Poll(ctx)
	if pollErr != nil {
		c.log.Warn("bus poll failed", "error", pollErr)
	} else {
		c.applyInputs(frame)
	}

	c.tickStaticRecalls()
	if c.random != nil {
		c.random.Tick(dt, c.calls)
	}

	c.calls.Age(dt)
	callQueueDepth.Set(float64(c.calls.Len()))

	c.advanceModeTimer(dt)

	if err := c.stepStateMachines(dt); err != nil {
		c.mode = mode.LSFlash
		return fmt.Errorf("control: tick: %w", err)
	}

	outputs := c.outputVector()
	sendErr := c.adapter.Send(ctx, bus.OutboundFrame{Switches: outputs})
	if sendErr != nil {
		c.log.Warn("bus send failed", "error", sendErr)
	}

	busErr := pollErr
	if sendErr != nil {
		busErr = sendErr
	}
	c.recordBusResult(busErr)
	if c.busFailSafe && c.mode != mode.Off {
		c.mode = mode.LSFlash
	}

	c.publishTelemetry(outputs)
	c.clock.Advance()
	return nil
}

func (c *Controller) recordBusResult(err error) {
	if err != nil {
		busFailuresTotal.Inc()
		c.busOKStreak.Reset()
		if c.busFailStreak.Hit() {
			if !c.busFailSafe {
				c.log.Warn("bus failure streak tripped fail-safe", "consecutive_failures", c.busFailStreak.Count())
			}
			c.busFailSafe = true
		}
		busFailSafeSetGauge(c.busFailSafe)
		return
	}
	c.busFailStreak.Reset()
	if c.busOKStreak.Hit() && c.busFailSafe {
		c.log.Info("bus recovered, clearing fail-safe")
		c.busFailSafe = false
	}
	busFailSafeSetGauge(c.busFailSafe)
}

func busFailSafeSetGauge(active bool) {
	if active {
		busFailSafeActive.Set(1)
		return
	}
	busFailSafeActive.Set(0)
}

// advanceModeTimer handles the CET countdown: CET behaves exactly like
// LS_FLASH for cet-delay seconds, then hands off to the steady mode.
func (c *Controller) advanceModeTimer(dt float64) {
	if c.mode != mode.Cet {
		return
	}
	if c.cetTimer.Tick(dt) {
		c.log.Info("CET delay elapsed", "mode", c.steadyMode.String())
		c.mode = c.steadyMode
	}
}

// stepStateMachines implements steps (d)-(f): mode-dependent scheduling
// and phase advancement. Time-freeze and tech-flash both suppress it
// entirely, matching LS_FLASH's own suppression of the state machines.
func (c *Controller) stepStateMachines(dt float64) error {
	if c.frozen || c.techFlash {
		return nil
	}
	switch c.mode {
	case mode.Off, mode.LSFlash, mode.Cet:
		return nil
	case mode.Cxt:
		c.advanceTowardStop(dt)
	case mode.Normal:
		c.scheduleAndAdvance(dt)
	}
	return c.checkBarrierInvariant()
}

// advanceTowardStop drives every phase through its normal clearance
// path without granting any new service, the graceful-exit behavior
// CXT describes. Once every phase has returned to STOP/MIN_STOP, CXT
// hands off to LS_FLASH on its own.
func (c *Controller) advanceTowardStop(dt float64) {
	for _, m := range c.phases {
		c.advanceOne(m, dt, phase.Grant{})
	}
	if c.allPhasesAtStop() {
		c.mode = mode.LSFlash
	}
}

// scheduleAndAdvance implements steps (d)-(f) for NORMAL operation: run
// the ring-barrier scheduler over the ranked call queue, grant service
// to whatever it selects, advance every phase, and mark served calls.
func (c *Controller) scheduleAndAdvance(dt float64) {
	ranked := c.calls.Ranked(c.inActiveBarrier)
	idle := len(ranked) == 0

	before := c.scheduler.ActiveBarrier()
	decisions := c.scheduler.Select(c.phases, ranked, idle)
	if after := c.scheduler.ActiveBarrier(); after != before && after >= 0 {
		c.transferCount++
		barrierCrossingsTotal.Inc()
	}

	granted := make(map[phase.ID]bool, len(decisions))
	for _, d := range decisions {
		granted[d.Phase] = true
	}

	for _, m := range c.phases {
		id := m.Phase().ID
		grant := phase.Grant{}
		if granted[id] && m.State().AtStop() {
			grant.Serve = true
			grant.Ped = c.pedRequested(id)
		}
		c.advanceOne(m, dt, grant)
	}
}

// advanceOne advances a single phase by dt, promotes it to LEADER when
// a grant actually moved it off STOP, and marks its call served when it
// completes a full service cycle.
func (c *Controller) advanceOne(m *phase.Machine, dt float64, grant phase.Grant) {
	id := m.Phase().ID
	from := m.State()
	tr := m.Advance(dt, grant, phase.Input{Detector: c.detectorState[id]})

	if grant.Serve && from == phase.Stop && tr.To != phase.Stop {
		c.scheduler.Promote(c.phases, id)
	}
	if tr.CompletedService {
		c.calls.Served(id, tr.PedServed)
		c.notifyServed(id, tr.PedServed)
		c.servedPed[id] = tr.PedServed
	}
}

// checkBarrierInvariant enforces invariant (1): phases in different
// barriers must never both be outside STOP/MIN_STOP at once.
func (c *Controller) checkBarrierInvariant() error {
	activeBarrier := -1
	var activePhase phase.ID
	for _, m := range c.phases {
		if m.State().AtStop() {
			continue
		}
		b, ok := c.topo.BarrierOf(m.Phase().ID)
		if !ok {
			continue
		}
		if activeBarrier == -1 {
			activeBarrier, activePhase = b, m.Phase().ID
			continue
		}
		if activeBarrier != b {
			return fmt.Errorf("%w: phase %d (barrier %d) concurrent with phase %d (barrier %d)",
				ErrInvariant, m.Phase().ID, b, activePhase, activeBarrier)
		}
	}
	return nil
}
