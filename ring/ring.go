// Package ring implements the ring-and-barrier data model and the
// scheduler that decides, every tick, which phase in each ring should
// be granted service next.
package ring

import "signalhead.dev/phase"

// Ring is one ring's four phase-id slots, in service order. Slot value
// 0 means "no phase assigned to this slot" — fewer than four phases per
// ring is a normal, partially-filled configuration.
type Ring [4]phase.ID

// Barrier is the set of phase ids, across all rings, that may serve
// concurrently. Slot value 0 is the same empty-slot sentinel as Ring.
type Barrier [4]phase.ID

// Contains reports whether id occupies one of b's slots. The empty-slot
// sentinel 0 never matches.
func (b Barrier) Contains(id phase.ID) bool {
	if id == 0 {
		return false
	}
	for _, v := range b {
		if v == id {
			return true
		}
	}
	return false
}

// Topology is the static ring/barrier partition of a controller's phase
// set, built once from configuration and never mutated at runtime.
type Topology struct {
	Rings    []Ring
	Barriers []Barrier
}

// RingOf returns the index of the ring containing id and the slot id
// occupies within it.
func (t Topology) RingOf(id phase.ID) (ringIdx, slot int, ok bool) {
	if id == 0 {
		return 0, 0, false
	}
	for ri, r := range t.Rings {
		for si, v := range r {
			if v == id {
				return ri, si, true
			}
		}
	}
	return 0, 0, false
}

// BarrierOf returns the index of the barrier containing id.
func (t Topology) BarrierOf(id phase.ID) (barrierIdx int, ok bool) {
	if id == 0 {
		return 0, false
	}
	for bi, b := range t.Barriers {
		if b.Contains(id) {
			return bi, true
		}
	}
	return 0, false
}
