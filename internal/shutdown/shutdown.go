// Package shutdown provides a single sticky, process-wide cancellation
// flag observed by every suspension point in the driver, pipeline,
// supervisor, and sleep loops (§5).
package shutdown

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Flag is a sticky cancellation signal. The zero value is ready to use.
type Flag struct {
	tripped atomic.Bool
}

// NewFlag returns a Flag wired to SIGINT/SIGTERM and a stop function. Call
// the stop function when the process is exiting to release the
// signal.Notify channel.
func NewFlag() (*Flag, func()) {
	f := &Flag{}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			f.Trip()
		case <-done:
		}
	}()
	stop := func() {
		close(done)
		signal.Stop(ch)
	}
	return f, stop
}

// Trip marks the flag as tripped. Idempotent.
func (f *Flag) Trip() { f.tripped.Store(true) }

// Tripped reports whether shutdown has been requested.
func (f *Flag) Tripped() bool { return f.tripped.Load() }
