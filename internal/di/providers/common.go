package providers

import (
	"errors"
	"time"
)

// shutdownTimeout bounds how long a handle waits for in-flight work
// (HTTP requests, a running sweep) before giving up.
const shutdownTimeout = 30 * time.Second

var errShutdownTimeout = errors.New("shutdown timed out")

// waitDone blocks until done closes or shutdownTimeout elapses.
func waitDone(done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-time.After(shutdownTimeout):
		return errShutdownTimeout
	}
}
