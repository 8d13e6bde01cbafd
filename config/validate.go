package config

import (
	"fmt"
	"strings"

	"signalhead.dev/mode"
)

// ValidationError collects every configuration violation found in one
// pass, so an operator sees all of them at once instead of fixing them
// one at a time.
type ValidationError []string

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %d error(s): %s", len(e), strings.Join(e, "; "))
}

// Validate checks d for schema, partition, and collision violations and
// returns every one it finds.
func (d *Document) Validate() ValidationError {
	var errs ValidationError

	if d.Schema != 3 && d.Schema != 4 {
		errs = append(errs, fmt.Sprintf("unsupported schema version %d (want 3 or 4)", d.Schema))
	}
	if d.TickSize <= 0 {
		errs = append(errs, "tick_size must be greater than 0")
	}
	if len(d.PhaseConfigs) == 0 {
		errs = append(errs, "at least one phase must be configured")
	}
	if _, err := mode.Parse(d.Init.Mode); err != nil {
		errs = append(errs, fmt.Sprintf("init.mode: %v", err))
	}

	seenID := map[int]bool{}
	seenVehicle := map[int]bool{}
	seenPed := map[int]bool{}
	validID := map[int]bool{}
	for _, p := range d.PhaseConfigs {
		if p.ID <= 0 {
			errs = append(errs, fmt.Sprintf("phase id %d must be positive (0 is the empty-slot sentinel)", p.ID))
			continue
		}
		if seenID[p.ID] {
			errs = append(errs, fmt.Sprintf("duplicate phase id %d", p.ID))
		}
		seenID[p.ID] = true
		validID[p.ID] = true

		if seenVehicle[p.Vehicle] {
			errs = append(errs, fmt.Sprintf("phase %d: vehicle load switch %d already in use by another phase", p.ID, p.Vehicle))
		}
		seenVehicle[p.Vehicle] = true

		if p.Ped != nil {
			if seenPed[*p.Ped] {
				errs = append(errs, fmt.Sprintf("phase %d: pedestrian load switch %d already in use by another phase", p.ID, *p.Ped))
			}
			seenPed[*p.Ped] = true
		}

		if p.Recall != nil && p.Recall.Type != "maintained" && p.Recall.Type != "latched" {
			errs = append(errs, fmt.Sprintf("phase %d: recall.type %q must be \"maintained\" or \"latched\"", p.ID, p.Recall.Type))
		}
	}

	errs = append(errs, validatePartition("rings", d.Rings, validID)...)
	errs = append(errs, validatePartition("barriers", d.Barriers, validID)...)

	for _, id := range d.Idling.Phases {
		if !validID[id] {
			errs = append(errs, fmt.Sprintf("idling.phases: phase %d is not configured", id))
		}
	}

	for i, in := range d.Inputs {
		if in.Action != "time_freeze" && !validID[in.Target] {
			errs = append(errs, fmt.Sprintf("inputs[%d]: target phase %d is not configured", i, in.Target))
		}
		switch in.Action {
		case "detector", "recall", "inhibit", "flash_override", "time_freeze":
		default:
			errs = append(errs, fmt.Sprintf("inputs[%d]: unknown action %q", i, in.Action))
		}
	}

	if d.Random.Enabled {
		if d.Random.Max < d.Random.Min {
			errs = append(errs, "random_actuation: max must be >= min")
		}
		for _, id := range d.Random.Targets {
			if !validID[id] {
				errs = append(errs, fmt.Sprintf("random_actuation.targets: phase %d is not configured", id))
			}
		}
	}

	return errs
}

// validatePartition checks that groups (ring or barrier slot lists)
// reference only configured phases, fit the fixed 4-slot shape, and
// together cover every configured phase exactly once.
func validatePartition(name string, groups [][]int, validID map[int]bool) ValidationError {
	var errs ValidationError
	seen := map[int]bool{}
	for gi, g := range groups {
		if len(g) > 4 {
			errs = append(errs, fmt.Sprintf("%s[%d]: has %d slots, maximum is 4", name, gi, len(g)))
		}
		for _, id := range g {
			if id == 0 {
				continue
			}
			if !validID[id] {
				errs = append(errs, fmt.Sprintf("%s[%d]: phase %d is not configured", name, gi, id))
				continue
			}
			if seen[id] {
				errs = append(errs, fmt.Sprintf("%s: phase %d appears in more than one group", name, id))
			}
			seen[id] = true
		}
	}
	for id := range validID {
		if !seen[id] {
			errs = append(errs, fmt.Sprintf("%s: phase %d is not assigned to any group", name, id))
		}
	}
	return errs
}
