// Package bus defines the field-bus adapter contract the controller
// uses to exchange discrete inputs and load-switch outputs with
// cabinet hardware, plus an in-memory reference adapter for tests and
// simulation.
package bus

import (
	"context"

	"signalhead.dev/loadswitch"
)

// Edge is one discrete input's observed transition since the last
// poll.
type Edge struct {
	Pin      int
	Asserted bool
}

// InboundFrame is one poll's worth of field-bus input: the raw level
// of every discrete input plus the edges that changed since the
// previous poll.
type InboundFrame struct {
	Levels []bool
	Edges  []Edge
}

// OutboundFrame is one tick's worth of load-switch output, indexed the
// same way as the controller's flat load-switch array.
type OutboundFrame struct {
	Switches []loadswitch.Output
}

// Adapter is the field-bus transport contract: poll for fresh input,
// send the current output vector. Implementations (driver/fieldbus, or
// the in-memory Loopback below) own the underlying transport and its
// failure handling; Poll and Send return an error for the controller's
// fail-safe bookkeeping to count, never panic.
type Adapter interface {
	Poll(ctx context.Context) (InboundFrame, error)
	Send(ctx context.Context, frame OutboundFrame) error
}
