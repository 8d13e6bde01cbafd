package control

import "errors"

// ErrInvariant marks a scheduler invariant violation: two phases in
// different barriers observed simultaneously outside STOP/MIN_STOP.
// This is a fatal bug, not a recoverable condition;
// Controller.Tick forces LS_FLASH and returns the wrapped error rather
// than silently continuing.
var ErrInvariant = errors.New("control: scheduler invariant violated")
