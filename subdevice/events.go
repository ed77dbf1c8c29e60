package subdevice

import "github.com/kajity/ecdump/ethercat"

// EventKind identifies the shape of an ESM transition event emitted by
// ChangeState.
type EventKind uint8

const (
	// CleanTransition is emitted when the device's AL status matches a
	// pending request and the move is forward or stationary; logged at
	// debug, never a reportable error.
	CleanTransition EventKind = iota
	// InvalidStateTransition is emitted when the device's state moved
	// further than what was requested, or moved forward with no
	// corresponding request at all.
	InvalidStateTransition
	// BackwardTransition is emitted when the device's state regressed.
	// It sets HasESMError on the device as a side effect.
	BackwardTransition
	// IllegalTransition is emitted when the device's state changes
	// before any AL Control has ever been observed for it.
	IllegalTransition
	// TransitionFailed is emitted when the device settled on a state
	// short of what was requested.
	TransitionFailed
)

// Event is a single ESM transition finding, tagged with the frame it
// was observed in for cross-referencing against the capture.
type Event struct {
	Kind      EventKind
	FrameNum  uint64
	From      ethercat.State
	To        ethercat.State
	Requested ethercat.State
	Current   ethercat.State
	HasError  bool
	// BootstrapOrdering is set when Bootstrap took part in the
	// forward/backward comparison that produced this event. Bootstrap's
	// numeric value places it between PreOp and SafeOp on the linear
	// order used here, but the real ESM treats it as a side branch, so
	// such comparisons are an approximation worth flagging.
	BootstrapOrdering bool
}
