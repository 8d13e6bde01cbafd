package control

import (
	"context"
	"errors"
	"fmt"

	"signalhead.dev/config"
	"signalhead.dev/mode"
	"signalhead.dev/timing"
)

// maxShutdownTicks bounds the graceful CXT drive-down during shutdown:
// if phases somehow never reach STOP (a stuck detector holding EXTEND
// forever, say), shutdown still terminates rather than hanging the
// process.
const maxShutdownTicks = 10_000

// Run is the process-level loop: it waits on pace for each tick's turn,
// ticks, and repeats until ctx is canceled, at which point it drives the
// controller through the graceful CXT -> LS_FLASH -> OFF shutdown
// sequence before returning.
func (c *Controller) Run(ctx context.Context, pace timing.Pacer) error {
	c.log.Info("controller run starting", "mode", c.mode.String())
	for pace.Wait(ctx) {
		if err := c.Tick(ctx); err != nil {
			c.log.Error("tick failed", "error", err)
			if errors.Is(err, ErrInvariant) {
				return err
			}
		}
	}
	return c.shutdown()
}

// shutdown drives the controller from whatever mode it is in down to
// OFF, emitting a final telemetry snapshot and a dark bus frame. It uses
// a background context for its own ticks so the final frames still
// reach their adapters even though the Run context that triggered
// shutdown is already canceled.
func (c *Controller) shutdown() error {
	if c.mode == mode.Off {
		return nil
	}
	c.log.Info("shutting down", "from_mode", c.mode.String())

	if c.mode != mode.LSFlash {
		c.mode = mode.Cxt
	}
	for i := 0; i < maxShutdownTicks && c.mode != mode.LSFlash; i++ {
		if err := c.Tick(context.Background()); err != nil {
			c.log.Error("shutdown tick failed", "error", err)
			break
		}
	}

	c.mode = mode.Off
	if err := c.Tick(context.Background()); err != nil {
		c.log.Error("final dark-frame tick failed", "error", err)
		return err
	}
	c.log.Info("controller stopped")
	return nil
}

// ApplyConfig is the explicit live-reconfiguration operation: valid
// only while OFF or at a stable inter-cycle boundary (every phase at
// STOP), rather than mutating fields of a running controller ad hoc. On
// success the controller is entirely rebuilt from next and resumes in
// its previous operating mode.
func (c *Controller) ApplyConfig(next *config.Document) error {
	if c.mode != mode.Off && !c.allPhasesAtStop() {
		return fmt.Errorf("control: apply config: controller must be OFF or at a stable inter-cycle boundary")
	}
	if errs := next.Validate(); len(errs) > 0 {
		return fmt.Errorf("control: apply config: %w", errs)
	}

	resumeMode := c.mode
	rebuilt, err := New(next, c.adapter, c.publisher, c.log)
	if err != nil {
		return fmt.Errorf("control: apply config: %w", err)
	}
	rebuilt.mode = resumeMode
	*c = *rebuilt
	return nil
}
