// Package it is the interface-level stub for isochronous transmit
// (spec.md §1 Non-goals, §9 open question 3). A Context can be allocated
// so a caller holds a handle matching the shape of an IR context, but
// Start is not implemented: full isochronous transmit is out of scope.
package it

import "errors"

// ErrUnimplemented is returned by Start. It is the it package's own
// sentinel rather than a reuse of ohci.ErrUnimplemented so this package
// has no dependency on ohci.
var ErrUnimplemented = errors.New("it: isochronous transmit is unimplemented")

// Config describes an isochronous-transmit context a caller would like to
// allocate. Channel and Speed mirror the fields an OHCI IT context program
// would need once Start is implemented.
type Config struct {
	Channel uint8
	Speed   uint8
}

// Context is a handle for one isochronous-transmit context. It exists so
// callers can hold a consistent type across the IR/IT split; Start always
// returns ErrUnimplemented and Stop does nothing.
type Context struct {
	cfg Config
}

// Allocate returns a Context for the given configuration. It performs no
// hardware or DMA setup; Start is what would do that, and it refuses.
func Allocate(cfg Config) *Context {
	return &Context{cfg: cfg}
}

// Start always returns ErrUnimplemented. Programming an IT descriptor
// chain (SY/TAG-stamped isochronous headers, per-cycle skip handling) is
// explicitly out of scope for this core.
func (c *Context) Start() error {
	return ErrUnimplemented
}

// Stop is a no-op: Start never ran, so there is nothing to quiesce.
func (c *Context) Stop() {}
