package control

import (
	"errors"

	"signalhead.dev/loadswitch"
	"signalhead.dev/telemetry"
)

// publishTelemetry implements step (i): build and publish this tick's
// Snapshot. A disconnected subscriber is expected and non-fatal;
// every other publish error is logged at debug and otherwise ignored —
// telemetry is an observability side channel, never a control input.
func (c *Controller) publishTelemetry(outputs []loadswitch.Output) {
	demand := float64(c.calls.Len())
	c.demandTotal += demand
	c.demandTicks++
	if demand > c.peakDemand {
		c.peakDemand = demand
	}
	var avg float64
	if c.demandTicks > 0 {
		avg = c.demandTotal / float64(c.demandTicks)
	}

	var flags uint32
	if c.busFailSafe {
		flags |= telemetry.FlagBusFailure
	}
	if c.frozen {
		flags |= telemetry.FlagTimeFreeze
	}
	if c.techFlash {
		flags |= telemetry.FlagTechFlash
	}

	phases := make([]telemetry.PhaseSnapshot, len(c.phases))
	for i, m := range c.phases {
		id := m.Phase().ID
		phases[i] = telemetry.PhaseSnapshot{
			ID:           uint8(id),
			State:        uint8(m.State()),
			Status:       uint8(m.Status()),
			TimeUpper:    m.TimeUpper(),
			TimeLower:    m.TimeLower(),
			ServedPed:    c.servedPed[id],
			Detections:   c.detectorState[id],
			VehicleCalls: c.calls.HasUnservedCall(id, false),
			PedCalls:     c.calls.HasUnservedCall(id, true),
		}
	}

	switches := make([]telemetry.LoadSwitchSnapshot, len(outputs))
	for i, o := range outputs {
		switches[i] = telemetry.LoadSwitchSnapshot{Index: i, A: o.A, B: o.B, C: o.C}
	}

	snap := telemetry.Snapshot{
		Mode:          uint8(c.mode),
		StateFlags:    flags,
		AvgDemand:     avg,
		PeakDemand:    c.peakDemand,
		Runtime:       c.clock.ControlTime(),
		ControlTime:   c.clock.ControlTime(),
		TransferCount: c.transferCount,
		Phases:        phases,
		LoadSwitches:  switches,
	}

	if err := c.publisher.Publish(snap); err != nil && !errors.Is(err, telemetry.ErrNoSubscriber) {
		c.log.Debug("telemetry publish failed", "error", err)
	}
}
