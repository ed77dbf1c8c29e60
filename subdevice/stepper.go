package subdevice

import "github.com/kajity/ecdump/ethercat"

// CommandStepper is a per-command strategy composed of lifecycle hooks.
// Init/PreOp/SafeOp/Op run only in the matching device state; Common
// always runs. ChangeState is deliberately not part of this interface:
// it is the uniform ESM transition logic shared by every command and
// always runs last (see Step).
type CommandStepper interface {
	Init(s *SubDevice, frameNum uint64)
	PreOp(s *SubDevice, frameNum uint64)
	SafeOp(s *SubDevice, frameNum uint64)
	Op(s *SubDevice, frameNum uint64)
	Common(s *SubDevice, frameNum uint64)
}

// BaseStepper implements CommandStepper with no-op hooks. Concrete
// steppers embed it and override only the hooks they need.
type BaseStepper struct{}

func (BaseStepper) Init(*SubDevice, uint64)   {}
func (BaseStepper) PreOp(*SubDevice, uint64)  {}
func (BaseStepper) SafeOp(*SubDevice, uint64) {}
func (BaseStepper) Op(*SubDevice, uint64)     {}
func (BaseStepper) Common(*SubDevice, uint64) {}

// DefaultCommandStepper is used for every command that has no
// command-specific register-refresh behavior of its own (APWR, FPWR,
// BWR, BRW, APRW, FPRW, ARMW, FRMW, LRD/LWR/LRW, NOP). It still drives
// the shared ESM transition logic against whatever al_control/al_status
// state was last refreshed by a BRD, APRD, or FPRD on this device.
type DefaultCommandStepper struct{ BaseStepper }

// BrdCommandStepper backs the BRD command. Its Common hook refreshes
// al_control from register_wr and al_status from register_brd.
type BrdCommandStepper struct{ BaseStepper }

// Common refreshes al_control unconditionally and al_status only when
// the broadcast status nibble decodes cleanly; a malformed nibble
// clears al_status rather than pinning it to stale data, since a BRD
// response is a bus-wide OR across devices that may disagree.
func (BrdCommandStepper) Common(s *SubDevice, frameNum uint64) {
	if b, ok := s.ReadByteWr(ethercat.RegAlControl); ok {
		s.alControl = ethercat.DecodeAlControl(b)
		s.controlObserved = true
	}
	if b, ok := s.ReadByteBrd(ethercat.RegAlStatus); ok {
		decoded := ethercat.DecodeAlStatus(b)
		if decoded.StateOK {
			s.alStatus = decoded
		} else {
			s.alStatus = ethercat.AlStatus{}
		}
	} else {
		s.alStatus = ethercat.AlStatus{}
	}
}

// AprdCommandStepper backs the APRD command. Its Init hook commits the
// device's configured address once register_wr and register_rd agree.
type AprdCommandStepper struct{ BaseStepper }

// Init reads ConfiguredStationAddress from both register_wr and
// register_rd; the address is committed only when they agree, since an
// APRD observed before the write has fully propagated around the ring
// would otherwise latch a stale value.
func (AprdCommandStepper) Init(s *SubDevice, frameNum uint64) {
	if s.configuredAddress != nil {
		return
	}
	wr, ok := s.ReadWr(ethercat.RegConfiguredStationAddress, 2)
	if !ok {
		return
	}
	rd, ok := s.ReadRd(ethercat.RegConfiguredStationAddress, 2)
	if !ok {
		return
	}
	if wr[0] != rd[0] || wr[1] != rd[1] {
		return
	}
	s.commitConfiguredAddress(uint16(wr[0]) | uint16(wr[1])<<8)
}

// FprdCommandStepper backs the FPRD command. Its Common hook refreshes
// al_control and al_status unconditionally, with no clearing logic.
type FprdCommandStepper struct{ BaseStepper }

func (FprdCommandStepper) Common(s *SubDevice, frameNum uint64) {
	if b, ok := s.ReadByteWr(ethercat.RegAlControl); ok {
		s.alControl = ethercat.DecodeAlControl(b)
		s.controlObserved = true
	}
	if b, ok := s.ReadByteRd(ethercat.RegAlStatus); ok {
		s.alStatus = ethercat.DecodeAlStatus(b)
	}
}

// Step runs stepper's state-appropriate hook, then Common, then the
// shared ChangeState logic, returning any ESM events it produced.
func Step(stepper CommandStepper, s *SubDevice, frameNum uint64) []Event {
	switch s.state {
	case ethercat.Init:
		stepper.Init(s, frameNum)
	case ethercat.PreOp:
		stepper.PreOp(s, frameNum)
	case ethercat.SafeOp:
		stepper.SafeOp(s, frameNum)
	case ethercat.Op:
		stepper.Op(s, frameNum)
	}
	stepper.Common(s, frameNum)
	return ChangeState(s, frameNum)
}

// ChangeState is the uniform ESM transition logic shared by every
// CommandStepper. It commits s.state from the freshly refreshed
// al_status and compares it against any pending al_control request.
func ChangeState(s *SubDevice, frameNum uint64) []Event {
	if !s.alStatus.StateOK {
		return nil
	}
	oldState := s.state
	newState := s.alStatus.State

	var requested *ethercat.State
	if s.alControl.StateOK && s.alControl.State != oldState {
		req := s.alControl.State
		requested = &req
	}

	s.state = newState

	bootstrap := newState == ethercat.Bootstrap || oldState == ethercat.Bootstrap ||
		(requested != nil && *requested == ethercat.Bootstrap)

	if requested != nil {
		req := *requested
		switch {
		case newState > req:
			return []Event{{Kind: InvalidStateTransition, FrameNum: frameNum, Requested: req, Current: newState, BootstrapOrdering: bootstrap}}
		case newState < oldState:
			s.hasESMError = true
			s.loadAlStatusCode()
			return []Event{{Kind: BackwardTransition, FrameNum: frameNum, From: oldState, To: newState, HasError: s.alStatus.Error, BootstrapOrdering: bootstrap}}
		case newState < req:
			return []Event{{Kind: TransitionFailed, FrameNum: frameNum, Requested: req, Current: newState, HasError: s.alStatus.Error, BootstrapOrdering: bootstrap}}
		default:
			return []Event{{Kind: CleanTransition, FrameNum: frameNum, From: oldState, To: newState, BootstrapOrdering: bootstrap}}
		}
	}

	var events []Event
	if !s.controlObserved && newState != oldState {
		events = append(events, Event{Kind: IllegalTransition, FrameNum: frameNum, To: newState, BootstrapOrdering: bootstrap})
	}
	if newState < oldState {
		s.hasESMError = true
		s.loadAlStatusCode()
		events = append(events, Event{Kind: BackwardTransition, FrameNum: frameNum, From: oldState, To: newState, HasError: s.alStatus.Error, BootstrapOrdering: bootstrap})
	}
	if newState > oldState {
		events = append(events, Event{Kind: InvalidStateTransition, FrameNum: frameNum, Requested: oldState, Current: newState, BootstrapOrdering: bootstrap})
	}
	return events
}
