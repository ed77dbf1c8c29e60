// Package capture supplies EtherCAT traffic to the analyzer, either
// from a live network interface or from a PCAP/PCAPNG file, and
// optionally tees received frames back out to a PCAP file. It is the
// only package in this module that imports the libpcap bindings.
package capture

import (
	"context"
	"time"
)

// Data is one captured EtherCAT frame, Ethernet headers already
// stripped, ready for ethercat.NewFrame.
type Data struct {
	// Timestamp is the time since the start of the capture.
	Timestamp time.Duration
	// FromMain reports whether this frame's Ethernet source MAC
	// matches the capture's inferred main device, as determined by
	// direction inference (see direction.go). Always false on the
	// live path, per the packet-source contract.
	FromMain bool
	// Data holds the EtherCAT frame header and datagram chain. It is
	// borrowed from a pooled buffer and must not be retained past the
	// call to Recycle.
	Data []byte
}

// Source produces a stream of captured EtherCAT frames on Frames and
// accepts spent buffers back on Recycle for reuse. Close releases the
// underlying handle or file descriptor. Implementations must be safe
// to drive from a single goroutine only.
type Source interface {
	// Frames returns the channel captured data arrives on. It is
	// closed when the source is exhausted (file EOF) or ctx is
	// cancelled.
	Frames() <-chan Data
	// Recycle returns a spent buffer to the source's pool so captures
	// can reuse storage instead of allocating per frame.
	Recycle(buf []byte)
	// Run drives the source until ctx is cancelled or the underlying
	// stream ends. It must be called exactly once, typically from a
	// dedicated goroutine.
	Run(ctx context.Context) error
	// Close releases the source's resources. Safe to call after Run
	// has returned.
	Close() error
}
