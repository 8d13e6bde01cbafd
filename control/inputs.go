package control

import (
	"signalhead.dev/bus"
	"signalhead.dev/call"
	"signalhead.dev/phase"
)

// applyInputs implements step (b): it maps the tick's inbound field-bus
// levels onto the call queue and the controller's operator-mode
// overrides (time-freeze, tech-flash, call-inhibit), per each input's
// configured action.
//
// Only a subset of the field-input action vocabulary
// (detector, recall, inhibit, flash_override, time_freeze) is wired
// here; preemption, dark, extend-inhibit, ped-clear-inhibit, and
// random-recall-inhibit are not.
func (c *Controller) applyInputs(frame bus.InboundFrame) {
	level := func(pin int) bool {
		if pin < 0 || pin >= len(frame.Levels) {
			return false
		}
		return frame.Levels[pin]
	}

	c.frozen = false
	for _, pin := range c.timeFreezePins {
		if level(pin) {
			c.frozen = true
		}
	}

	c.techFlash = false
	for _, pin := range c.flashOverridePins {
		if level(pin) {
			c.techFlash = true
		}
	}

	inhibited := make(map[phase.ID]bool, len(c.inhibitPins))
	for _, pt := range c.inhibitPins {
		if level(pt.pin) {
			inhibited[pt.target] = true
		}
	}

	for id := range c.detectorState {
		delete(c.detectorState, id)
	}
	for _, d := range c.detectors {
		if !level(d.pin) {
			continue
		}
		c.detectorState[d.target] = true
		if !inhibited[d.target] {
			c.calls.Place(d.target, d.ped, call.SourceDetector, 1.0)
		}
	}

	for _, ir := range c.inputRecalls {
		asserted := level(ir.pin) && !inhibited[ir.recall.Target]
		ir.recall.Tick(asserted, c.calls)
	}
}

// tickStaticRecalls implements the rest of step (b) for phase-level
// recall configuration (config.Document.Recalls, as opposed to a
// field-bus recall switch): a maintained recall is always asserted,
// and a latched recall's assertion signal is the phase's own return to
// STOP, so a fresh latch is armed every time the phase completes a
// cycle without one.
func (c *Controller) tickStaticRecalls() {
	for _, sr := range c.recalls {
		asserted := sr.recall.Type == call.RecallMaintained || sr.phase.State() == phase.Stop
		sr.recall.Tick(asserted, c.calls)
	}
}

func (c *Controller) notifyServed(target phase.ID, ped bool) {
	for _, sr := range c.recalls {
		sr.recall.NotifyServed(target, ped)
	}
	for _, ir := range c.inputRecalls {
		ir.recall.NotifyServed(target, ped)
	}
}

func (c *Controller) pedRequested(id phase.ID) bool {
	return c.calls.HasUnservedCall(id, true)
}

func (c *Controller) inActiveBarrier(id phase.ID) bool {
	active := c.scheduler.ActiveBarrier()
	if active < 0 {
		return false
	}
	b, ok := c.topo.BarrierOf(id)
	return ok && b == active
}
