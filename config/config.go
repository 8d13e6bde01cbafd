// Package config implements the schema-v4 configuration document: its
// YAML shape, strict unknown-key rejection, defaulting, and the
// conversions that turn it into the concrete types the rest of the
// controller consumes.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the top-level configuration document, schema v4 (with
// v3's calls.{max_age,weights} accepted as an optional extension).
type Document struct {
	Schema       int                   `yaml:"schema"`
	TickSize     float64               `yaml:"tick_size"`
	Init         InitConfig            `yaml:"init"`
	Defaults     PhaseTimingDefaults   `yaml:"defaults"`
	PhaseConfigs []PhaseConfig         `yaml:"phases"`
	Rings        [][]int               `yaml:"rings"`
	Barriers     [][]int               `yaml:"barriers"`
	Idling       IdlingConfig          `yaml:"idling"`
	Calls        CallsConfig           `yaml:"calls"`
	Inputs       []InputConfig         `yaml:"inputs"`
	Random       RandomActuationConfig `yaml:"random_actuation"`
}

// InitConfig is the controller's boot-time state.
type InitConfig struct {
	Mode     string  `yaml:"mode"`
	CETDelay float64 `yaml:"cet_delay"`
}

// PhaseTimingDefaults supplies fallback values for any phase timing
// field left at zero, per phase.Timing.WithDefaults (MinStop excepted).
type PhaseTimingDefaults struct {
	Rclr    float64 `yaml:"rclr"`
	Caution float64 `yaml:"caution"`
	Extend  float64 `yaml:"extend"`
	Go      float64 `yaml:"go"`
	Pclr    float64 `yaml:"pclr"`
	Walk    float64 `yaml:"walk"`
	MaxGo   float64 `yaml:"max_go"`
}

// PhaseConfig is one phase's static identity, timing, and recall
// configuration.
type PhaseConfig struct {
	ID      int           `yaml:"id"`
	Flash   string        `yaml:"flash_mode"`
	Vehicle int           `yaml:"vehicle"`
	Ped     *int          `yaml:"ped"`
	MinStop float64       `yaml:"min_stop"`
	Rclr    float64       `yaml:"rclr"`
	Caution float64       `yaml:"caution"`
	Extend  float64       `yaml:"extend"`
	Go      float64       `yaml:"go"`
	Pclr    float64       `yaml:"pclr"`
	Walk    float64       `yaml:"walk"`
	MaxGo   float64       `yaml:"max_go"`
	Recall  *RecallConfig `yaml:"recall"`
}

// RecallConfig configures a phase's automatic recall behavior.
type RecallConfig struct {
	Type string `yaml:"type"` // "maintained" or "latched"
	Ped  bool   `yaml:"ped"`
}

// IdlingConfig names the phases continuously re-offered when the
// controller has no outstanding calls.
type IdlingConfig struct {
	Phases []int `yaml:"phases"`
}

// CallsConfig tunes the call queue.
type CallsConfig struct {
	MaxAge             float64            `yaml:"max_age"`
	DuplicateFactor    float64            `yaml:"duplicate_factor"`
	SystemWeight       float64            `yaml:"system_weight"`
	ActiveBarrierBonus float64            `yaml:"active_barrier_bonus"`
	Weights            map[string]float64 `yaml:"weights"`
}

// InputConfig binds one discrete field-bus input to a call-queue
// action.
type InputConfig struct {
	Pin    int    `yaml:"pin"`
	Target int    `yaml:"target"`
	Action string `yaml:"action"` // "detector", "recall", "inhibit", "flash_override", "time_freeze"
	Ped    bool   `yaml:"ped"`
}

// RandomActuationConfig configures the seeded synthetic detector
// generator.
type RandomActuationConfig struct {
	Enabled bool    `yaml:"enabled"`
	Seed    uint64  `yaml:"seed"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Weight  float64 `yaml:"weight"`
	Targets []int   `yaml:"targets"`
}

// Load reads, strictly parses (rejecting unknown keys), defaults, and
// validates the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	doc.applyDefaults()
	if errs := doc.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &doc, nil
}

func (d *Document) applyDefaults() {
	if d.Schema == 0 {
		d.Schema = 4
	}
	if d.TickSize == 0 {
		d.TickSize = 0.1
	}
	if d.Calls.DuplicateFactor == 0 {
		d.Calls.DuplicateFactor = 0.5
	}
	for i, p := range d.PhaseConfigs {
		d.PhaseConfigs[i] = PhaseConfig{
			ID:      p.ID,
			Flash:   p.Flash,
			Vehicle: p.Vehicle,
			Ped:     p.Ped,
			MinStop: p.MinStop,
			Rclr:    defaultf(p.Rclr, d.Defaults.Rclr),
			Caution: defaultf(p.Caution, d.Defaults.Caution),
			Extend:  defaultf(p.Extend, d.Defaults.Extend),
			Go:      defaultf(p.Go, d.Defaults.Go),
			Pclr:    defaultf(p.Pclr, d.Defaults.Pclr),
			Walk:    defaultf(p.Walk, d.Defaults.Walk),
			MaxGo:   defaultf(p.MaxGo, d.Defaults.MaxGo),
			Recall:  p.Recall,
		}
	}
}

func defaultf(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
