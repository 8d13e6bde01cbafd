package config

import (
	"signalhead.dev/call"
	"signalhead.dev/mode"
	"signalhead.dev/phase"
	"signalhead.dev/ring"
)

// Phases converts the document's phase configuration into domain
// Phase records, in configuration order.
func (d *Document) Phases() []phase.Phase {
	out := make([]phase.Phase, len(d.PhaseConfigs))
	for i, p := range d.PhaseConfigs {
		ped := phase.NoLoadSwitch
		if p.Ped != nil {
			ped = phase.LoadSwitch(*p.Ped)
		}
		out[i] = phase.Phase{
			ID:      phase.ID(p.ID),
			Flash:   parseFlash(p.Flash),
			Vehicle: phase.LoadSwitch(p.Vehicle),
			Ped:     ped,
			Timing: phase.Timing{
				MinStop: p.MinStop,
				Rclr:    p.Rclr,
				Caution: p.Caution,
				Extend:  p.Extend,
				Go:      p.Go,
				Pclr:    p.Pclr,
				Walk:    p.Walk,
				MaxGo:   p.MaxGo,
			},
		}
	}
	return out
}

func parseFlash(s string) phase.FlashMode {
	if s == "yellow" {
		return phase.FlashYellow
	}
	return phase.FlashRed
}

// Topology builds the ring/barrier partition described by the
// document's rings and barriers lists.
func (d *Document) Topology() ring.Topology {
	return ring.Topology{
		Rings:    toSlots(d.Rings),
		Barriers: toBarrierSlots(d.Barriers),
	}
}

func toSlots(groups [][]int) []ring.Ring {
	out := make([]ring.Ring, len(groups))
	for i, g := range groups {
		var r ring.Ring
		for j, id := range g {
			if j >= len(r) {
				break
			}
			r[j] = phase.ID(id)
		}
		out[i] = r
	}
	return out
}

func toBarrierSlots(groups [][]int) []ring.Barrier {
	out := make([]ring.Barrier, len(groups))
	for i, g := range groups {
		var b ring.Barrier
		for j, id := range g {
			if j >= len(b) {
				break
			}
			b[j] = phase.ID(id)
		}
		out[i] = b
	}
	return out
}

// IdlePhases returns the configured idle-recall candidate phases.
func (d *Document) IdlePhases() []phase.ID {
	out := make([]phase.ID, len(d.Idling.Phases))
	for i, id := range d.Idling.Phases {
		out[i] = phase.ID(id)
	}
	return out
}

// CallConfig converts the document's calls tuning into call.Config.
func (d *Document) CallConfig() call.Config {
	return call.Config{
		MaxAge:             d.Calls.MaxAge,
		DuplicateFactor:    d.Calls.DuplicateFactor,
		SystemWeight:       d.Calls.SystemWeight,
		ActiveBarrierBonus: d.Calls.ActiveBarrierBonus,
	}
}

// weightFor looks up a configured base weight for a call source,
// falling back to 1.0 when unconfigured (v3's calls.weights extension).
func (d *Document) weightFor(source string) float64 {
	if w, ok := d.Calls.Weights[source]; ok {
		return w
	}
	return 1.0
}

// Recalls builds one call.Recall per phase that configures automatic
// recall.
func (d *Document) Recalls() []*call.Recall {
	var out []*call.Recall
	for _, p := range d.PhaseConfigs {
		if p.Recall == nil {
			continue
		}
		rt := call.RecallMaintained
		source := "recall_maintained"
		if p.Recall.Type == "latched" {
			rt = call.RecallLatched
			source = "recall_latched"
		}
		out = append(out, &call.Recall{
			Type:   rt,
			Target: phase.ID(p.ID),
			Ped:    p.Recall.Ped,
			Weight: d.weightFor(source),
		})
	}
	return out
}

// RandomActuator builds the seeded synthetic detector generator, or
// nil if random_actuation is disabled.
func (d *Document) RandomActuator() *call.RandomActuator {
	if !d.Random.Enabled {
		return nil
	}
	targets := make([]phase.ID, len(d.Random.Targets))
	for i, id := range d.Random.Targets {
		targets[i] = phase.ID(id)
	}
	weight := d.Random.Weight
	if weight == 0 {
		weight = d.weightFor("random")
	}
	return call.NewRandomActuator(d.Random.Seed, d.Random.Min, d.Random.Max, targets, weight)
}

// InitMode parses the document's boot-time control mode.
func (d *Document) InitMode() (mode.Mode, error) {
	return mode.Parse(d.Init.Mode)
}

// CETDelay is the configured control-entry transition delay, in
// seconds.
func (d *Document) CETDelay() float64 {
	return d.Init.CETDelay
}
