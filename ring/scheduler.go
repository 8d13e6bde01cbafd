package ring

import (
	"signalhead.dev/call"
	"signalhead.dev/phase"
)

// noBarrier marks "no barrier is currently locked" — every phase is at
// STOP or MIN_STOP and nothing has claimed the intersection yet.
const noBarrier = -1

// Decision records that a phase was selected to become NEXT in its
// ring this tick.
type Decision struct {
	Ring  int
	Phase phase.ID
}

// Scheduler implements the ring-barrier selection rules. Its only
// persistent state is the active barrier lock and each ring's
// last-served phase (used for ring-forward tie-breaking); everything
// else is recomputed from the phase array and call queue every tick.
type Scheduler struct {
	topo       Topology
	idlePhases []phase.ID
	active     int
	lastServed []phase.ID
}

// NewScheduler builds a Scheduler over topo. idlePhases are the
// phases re-offered as candidates (rule 5) when the controller has no
// outstanding calls anywhere.
func NewScheduler(topo Topology, idlePhases []phase.ID) *Scheduler {
	return &Scheduler{
		topo:       topo,
		idlePhases: idlePhases,
		active:     noBarrier,
		lastServed: make([]phase.ID, len(topo.Rings)),
	}
}

// ActiveBarrier returns the index of the currently locked barrier, or
// -1 if the controller is fully idle.
func (s *Scheduler) ActiveBarrier() int {
	return s.active
}

func byID(phases []*phase.Machine) map[phase.ID]*phase.Machine {
	m := make(map[phase.ID]*phase.Machine, len(phases))
	for _, p := range phases {
		m[p.Phase().ID] = p
	}
	return m
}

// compatible reports whether state s, held by a phase sharing the
// candidate's barrier, permits a concurrent phase to begin service:
// either genuinely clear (STOP/MIN_STOP) or already serving. Still
// clearing (CAUTION/RCLR) is not compatible — crossing must wait.
func compatible(s phase.State) bool {
	switch s {
	case phase.Stop, phase.MinStop, phase.Go, phase.Extend, phase.Walk, phase.Pclr:
		return true
	default:
		return false
	}
}

// Select runs rules (1)-(6) and returns the phases newly marked NEXT
// this tick. calls is the call queue's ranked output; idle indicates
// the controller currently has no outstanding calls anywhere, enabling
// rule 5's idle-recall candidates.
func (s *Scheduler) Select(phases []*phase.Machine, calls []call.Ranked, idle bool) []Decision {
	byPhase := byID(phases)

	// Rule 1: barrier lock. A phase outside STOP/MIN_STOP anywhere
	// pins the active barrier until it clears.
	nonStop := noBarrier
	for _, m := range phases {
		if !m.State().AtStop() {
			if b, ok := s.topo.BarrierOf(m.Phase().ID); ok {
				nonStop = b
			}
		}
	}

	if nonStop != noBarrier {
		s.active = nonStop
	} else {
		// Rule 6: every phase is at STOP/MIN_STOP; free to (re)lock
		// onto whichever barrier has demand, preferring to stay put.
		s.active = s.barrierWithDemand(calls, idle)
	}

	priority := make(map[phase.ID]float64, len(calls))
	for _, c := range calls {
		priority[c.Target] = c.Priority
	}

	var decisions []Decision
	for ringIdx, r := range s.topo.Rings {
		if occupant := s.occupant(r, byPhase); occupant != 0 {
			continue // rule 2: ring already serving a phase.
		}

		var bestID phase.ID
		var bestSlot int
		var bestPriority float64
		found := false

		for slot, id := range r {
			if id == 0 {
				continue
			}
			if s.active != noBarrier {
				if b, ok := s.topo.BarrierOf(id); !ok || b != s.active {
					continue
				}
			}
			if !s.conflictFree(ringIdx, id, byPhase) {
				continue // rule 3.
			}

			pr, hasCall := priority[id]
			if !hasCall {
				if idle && s.isIdlePhase(id) {
					pr = 0
				} else {
					continue
				}
			}

			if !found || s.better(r, pr, slot, bestPriority, bestSlot, ringIdx) {
				bestID, bestSlot, bestPriority, found = id, slot, pr, true
			}
		}

		if found {
			byPhase[bestID].SetStatus(phase.Next)
			s.lastServed[ringIdx] = bestID
			decisions = append(decisions, Decision{Ring: ringIdx, Phase: bestID})
		}
	}

	return decisions
}

// Promote is called by the control loop immediately after it grants
// service to a phase that was marked NEXT, turning it into the ring's
// LEADER and relabeling any already-serving partner in the same
// barrier as SECONDARY.
func (s *Scheduler) Promote(phases []*phase.Machine, granted phase.ID) {
	byPhase := byID(phases)
	m, ok := byPhase[granted]
	if !ok {
		return
	}
	m.SetStatus(phase.Leader)

	b, ok := s.topo.BarrierOf(granted)
	if !ok {
		return
	}
	for id, other := range byPhase {
		if id == granted {
			continue
		}
		if ob, ok := s.topo.BarrierOf(id); ok && ob == b && !other.State().AtStop() {
			other.SetStatus(phase.Secondary)
		}
	}
}

func (s *Scheduler) occupant(r Ring, byPhase map[phase.ID]*phase.Machine) phase.ID {
	for _, id := range r {
		if id == 0 {
			continue
		}
		if m, ok := byPhase[id]; ok && !m.State().AtStop() {
			return id
		}
	}
	return 0
}

// conflictFree implements rule 3 for a candidate entering ringIdx:
// every other ring must be either vacant or hold a same-barrier phase
// in a compatible (already-serving or cleared) state.
func (s *Scheduler) conflictFree(ringIdx int, candidate phase.ID, byPhase map[phase.ID]*phase.Machine) bool {
	candBarrier, _ := s.topo.BarrierOf(candidate)
	for ri, r := range s.topo.Rings {
		if ri == ringIdx {
			continue
		}
		occ := s.occupant(r, byPhase)
		if occ == 0 {
			continue
		}
		occBarrier, ok := s.topo.BarrierOf(occ)
		if !ok || occBarrier != candBarrier {
			return false
		}
		if !compatible(byPhase[occ].State()) {
			return false
		}
	}
	return true
}

// barrierWithDemand implements rule 6's crossing preference: remain on
// the active barrier if it still has demand, otherwise cross to
// whichever other barrier does, otherwise go fully idle.
func (s *Scheduler) barrierWithDemand(calls []call.Ranked, idle bool) int {
	demand := make([]bool, len(s.topo.Barriers))
	for _, c := range calls {
		if b, ok := s.topo.BarrierOf(c.Target); ok {
			demand[b] = true
		}
	}
	if idle {
		for _, id := range s.idlePhases {
			if b, ok := s.topo.BarrierOf(id); ok {
				demand[b] = true
			}
		}
	}
	if s.active != noBarrier && s.active < len(demand) && demand[s.active] {
		return s.active
	}
	for b, d := range demand {
		if d {
			return b
		}
	}
	return noBarrier
}

func (s *Scheduler) isIdlePhase(id phase.ID) bool {
	for _, p := range s.idlePhases {
		if p == id {
			return true
		}
	}
	return false
}

// better reports whether a candidate at (priority, slot) in ring r
// outranks the current best (bestPriority, bestSlot): higher priority
// wins; ties broken by ring-forward order from the ring's last-served
// slot, then by smaller phase id.
func (s *Scheduler) better(r Ring, priority float64, slot int, bestPriority float64, bestSlot, ringIdx int) bool {
	if priority != bestPriority {
		return priority > bestPriority
	}
	last := s.lastServed[ringIdx]
	d1 := forwardDistance(r, last, slot)
	d2 := forwardDistance(r, last, bestSlot)
	if d1 != d2 {
		return d1 < d2
	}
	return r[slot] < r[bestSlot]
}

// forwardDistance is how many slots forward (cyclically) slot lies
// from the slot last holding phase last. Absent a last-served phase,
// it degenerates to plain slot order.
func forwardDistance(r Ring, last phase.ID, slot int) int {
	if last == 0 {
		return slot
	}
	lastSlot := -1
	for i, v := range r {
		if v == last {
			lastSlot = i
			break
		}
	}
	if lastSlot == -1 {
		return slot
	}
	return (slot - lastSlot + len(r)) % len(r)
}
