package bus

import "errors"

// errBusFailure is returned by Loopback when simulating a transport
// failure.
var errBusFailure = errors.New("bus: simulated failure")
