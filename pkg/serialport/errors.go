package serialport

import "errors"

// ErrTimeout is returned when the expected bytes did not arrive in time.
var ErrTimeout = errors.New("serial read timeout")
