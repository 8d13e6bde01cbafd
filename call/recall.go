package call

import "signalhead.dev/phase"

// RecallType distinguishes the two recall behaviors a phase can be
// configured with.
type RecallType uint8

const (
	// RecallNone means the phase has no recall configured; it is only
	// served on genuine detector actuation.
	RecallNone RecallType = iota
	// RecallMaintained re-places its call on every tick the recall
	// input is asserted, so the call reappears immediately if the
	// phase is served and the input is still held.
	RecallMaintained
	// RecallLatched places its call once, on the input's rising edge,
	// and will not place another until the phase has served that
	// call and the input has gone through a fresh rising edge.
	RecallLatched
)

func (t RecallType) String() string {
	switch t {
	case RecallMaintained:
		return "maintained"
	case RecallLatched:
		return "latched"
	default:
		return "none"
	}
}

// Recall drives Queue.Place on behalf of one phase's recall
// configuration.
type Recall struct {
	Type    RecallType
	Target  phase.ID
	Ped     bool
	Weight  float64
	latched bool
	wasHigh bool
}

// Tick evaluates the recall input for one control cycle, placing a call
// on q as its configuration dictates.
func (r *Recall) Tick(asserted bool, q *Queue) {
	switch r.Type {
	case RecallMaintained:
		if asserted {
			q.Place(r.Target, r.Ped, SourceRecallMaintained, r.Weight)
		}
	case RecallLatched:
		risingEdge := asserted && !r.wasHigh
		if risingEdge && !r.latched {
			r.latched = true
			q.Place(r.Target, r.Ped, SourceRecallLatched, r.Weight)
		}
	}
	r.wasHigh = asserted
}

// NotifyServed clears a latched recall's arm once its target phase has
// completed service for the matching ped_service bit, permitting the
// next rising edge to place a fresh call.
func (r *Recall) NotifyServed(target phase.ID, ped bool) {
	if r.Type == RecallLatched && r.Target == target && r.Ped == ped {
		r.latched = false
	}
}
