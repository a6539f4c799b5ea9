// Package sensor streams device orientation angles and probes camera
// intrinsics. Access to both goes through explicit lifecycles bound to the
// active session, so a cancelled session never leaks a feed handle.
package sensor

import (
	"errors"
	"time"
)

var (
	// ErrPermissionDenied reports that the companion device refused sensor
	// access. Only the inclinometric path depends on it; the photographic
	// path stays usable.
	ErrPermissionDenied = errors.New("sensor permission denied")

	// ErrNoSignal reports a lock attempt before any sample arrived.
	ErrNoSignal = errors.New("no orientation sample received yet")

	// ErrStreamRunning reports a second Start on a running stream.
	ErrStreamRunning = errors.New("orientation stream already running")
)

// Sample is one raw tilt reading from the device, in degrees from
// horizontal, positive upward.
type Sample struct {
	AngleDeg float64
	At       time.Time
}

// Source is anything that can deliver tilt samples over time: the live
// websocket feed, or a replay of recorded values. Next blocks until a sample
// arrives; Close unblocks a pending Next and releases the handle.
type Source interface {
	Next() (Sample, error)
	Close() error
}
