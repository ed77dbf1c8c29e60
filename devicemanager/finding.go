package devicemanager

import (
	"time"

	"github.com/kajity/ecdump/ethercat"
	"github.com/kajity/ecdump/subdevice"
)

// FindingKind identifies the shape of a reportable event produced by
// the Manager. The ESM-derived kinds mirror subdevice.EventKind
// one-for-one; the WKC/addressing kinds are specific to dispatch.
type FindingKind uint8

const (
	CleanTransition FindingKind = iota
	InvalidStateTransition
	BackwardTransition
	IllegalTransition
	TransitionFailed
	InvalidWkc
	InvalidAutoIncrementAddress
	InvalidConfiguredAddress
)

// Finding is a single reportable event, tagged with enough dispatch
// context to reconstruct which datagram produced it.
type Finding struct {
	Kind      FindingKind
	FrameNum  uint64
	Timestamp time.Duration
	Command   ethercat.Command
	FromMain  bool

	// WKC fields, valid for InvalidWkc.
	ExpectedWkc uint16
	ActualWkc   uint16

	// Addressing fields, valid for InvalidAutoIncrementAddress /
	// InvalidConfiguredAddress respectively.
	Position uint16
	Address  uint16

	// ESM fields, valid for the ESM-derived kinds.
	From              ethercat.State
	To                ethercat.State
	Requested         ethercat.State
	Current           ethercat.State
	HasError          bool
	BootstrapOrdering bool
}

var esmKindByEventKind = map[subdevice.EventKind]FindingKind{
	subdevice.CleanTransition:        CleanTransition,
	subdevice.InvalidStateTransition: InvalidStateTransition,
	subdevice.BackwardTransition:     BackwardTransition,
	subdevice.IllegalTransition:      IllegalTransition,
	subdevice.TransitionFailed:       TransitionFailed,
}

// tagEvents converts a device's ESM events into Findings.
func tagEvents(events []subdevice.Event, frameNum uint64) []Finding {
	out := make([]Finding, len(events))
	for i, ev := range events {
		out[i] = Finding{
			Kind:              esmKindByEventKind[ev.Kind],
			FrameNum:          frameNum,
			From:              ev.From,
			To:                ev.To,
			Requested:         ev.Requested,
			Current:           ev.Current,
			HasError:          ev.HasError,
			BootstrapOrdering: ev.BootstrapOrdering,
		}
	}
	return out
}
