package call

import (
	"math/rand/v2"

	"signalhead.dev/phase"
)

// RandomActuator synthesizes detector calls at uniformly random
// intervals, for exercising the scheduler without field hardware. It is
// seeded with a PCG source so a given seed reproduces an identical call
// sequence for a given tick size.
type RandomActuator struct {
	rng     *rand.Rand
	min, max float64
	targets []phase.ID
	weight  float64
	next    float64
}

// NewRandomActuator builds a generator that places a call on a
// uniformly random member of targets every [min, max] seconds.
func NewRandomActuator(seed uint64, min, max float64, targets []phase.ID, weight float64) *RandomActuator {
	a := &RandomActuator{
		rng:     rand.New(rand.NewPCG(seed, seed)),
		min:     min,
		max:     max,
		targets: targets,
		weight:  weight,
	}
	a.reschedule()
	return a
}

func (a *RandomActuator) reschedule() {
	span := a.max - a.min
	if span <= 0 {
		a.next = a.min
		return
	}
	a.next = a.min + a.rng.Float64()*span
}

// Tick advances the countdown by dt and, when it elapses, places a call
// on q for a randomly chosen target before rescheduling.
func (a *RandomActuator) Tick(dt float64, q *Queue) {
	if len(a.targets) == 0 {
		return
	}
	a.next -= dt
	if a.next > 0 {
		return
	}
	t := a.targets[a.rng.IntN(len(a.targets))]
	q.Place(t, false, SourceRandom, a.weight)
	a.reschedule()
}
