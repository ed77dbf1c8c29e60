// Package subdevice models one physical EtherCAT subdevice as a
// direction-partitioned register file plus the AL (Application Layer)
// state it exposes. It never mutates on-wire data; it only replays the
// effect of observed datagrams onto a simulated register image.
package subdevice

import (
	"encoding/binary"

	"github.com/kajity/ecdump/ethercat"
)

// SubDevice is the reconstructed model of one node on the ring. It never
// holds a back-reference to its owning DeviceManager or to sibling
// devices; cross-device lookups belong to the caller.
type SubDevice struct {
	state State

	configuredAddress *uint16

	alControl       ethercat.AlControl
	alStatus        ethercat.AlStatus
	alStatusCode    *ethercat.AlStatusCode
	hasESMError     bool
	controlObserved bool

	registerWr  map[uint16]byte
	registerRd  map[uint16]byte
	registerBrd map[uint16]byte
}

// State is an alias of ethercat.State, kept local so callers of this
// package need not import ethercat just to read a device's state.
type State = ethercat.State

// New returns a SubDevice in the Init state with empty register files,
// as produced by DeviceManager on the first inbound BRD.
func New() *SubDevice {
	return &SubDevice{
		state:       ethercat.Init,
		registerWr:  make(map[uint16]byte),
		registerRd:  make(map[uint16]byte),
		registerBrd: make(map[uint16]byte),
	}
}

// State returns the device's current AL state.
func (s *SubDevice) State() State { return s.state }

// ConfiguredAddress returns the device's configured station address, or
// nil if it has not yet been committed (see AprdCommandStepper.Init).
func (s *SubDevice) ConfiguredAddress() *uint16 { return s.configuredAddress }

// ConfiguredAlias returns the device's configured station alias, read
// live from register_wr[0x0012..0x0013], or nil if either byte is
// unknown.
func (s *SubDevice) ConfiguredAlias() *uint16 {
	b, ok := s.ReadWr(ethercat.RegConfiguredStationAlias, 2)
	if !ok {
		return nil
	}
	v := binary.LittleEndian.Uint16(b)
	return &v
}

// AlControl returns the last-decoded AL Control byte.
func (s *SubDevice) AlControl() ethercat.AlControl { return s.alControl }

// AlStatus returns the last-decoded AL Status byte.
func (s *SubDevice) AlStatus() ethercat.AlStatus { return s.alStatus }

// AlStatusCode returns the last-latched AL Status Code, or nil if none
// has been latched yet (codes are latched on backward transitions; see
// loadAlStatusCode).
func (s *SubDevice) AlStatusCode() *ethercat.AlStatusCode { return s.alStatusCode }

// HasESMError reports whether the device has ever taken a backward ESM
// transition. The flag is sticky: it is never cleared.
func (s *SubDevice) HasESMError() bool { return s.hasESMError }

// WriteWr writes data into register_wr starting at offset, wrapping at
// 16 bits.
func (s *SubDevice) WriteWr(offset uint16, data []byte) { writeRegisters(s.registerWr, offset, data) }

// WriteRd writes data into register_rd starting at offset, wrapping at
// 16 bits.
func (s *SubDevice) WriteRd(offset uint16, data []byte) { writeRegisters(s.registerRd, offset, data) }

// WriteBrd writes data into register_brd starting at offset, wrapping
// at 16 bits.
func (s *SubDevice) WriteBrd(offset uint16, data []byte) {
	writeRegisters(s.registerBrd, offset, data)
}

// ReadWr reads n bytes from register_wr starting at offset. ok is false
// if any byte in the range has never been written.
func (s *SubDevice) ReadWr(offset uint16, n int) ([]byte, bool) {
	return readRegisters(s.registerWr, offset, n)
}

// ReadRd reads n bytes from register_rd starting at offset. ok is false
// if any byte in the range has never been written.
func (s *SubDevice) ReadRd(offset uint16, n int) ([]byte, bool) {
	return readRegisters(s.registerRd, offset, n)
}

// ReadBrd reads n bytes from register_brd starting at offset. ok is
// false if any byte in the range has never been written.
func (s *SubDevice) ReadBrd(offset uint16, n int) ([]byte, bool) {
	return readRegisters(s.registerBrd, offset, n)
}

// ReadByteWr reads a single byte from register_wr.
func (s *SubDevice) ReadByteWr(offset uint16) (byte, bool) {
	b, ok := s.registerWr[offset]
	return b, ok
}

// ReadByteRd reads a single byte from register_rd.
func (s *SubDevice) ReadByteRd(offset uint16) (byte, bool) {
	b, ok := s.registerRd[offset]
	return b, ok
}

// ReadByteBrd reads a single byte from register_brd.
func (s *SubDevice) ReadByteBrd(offset uint16) (byte, bool) {
	b, ok := s.registerBrd[offset]
	return b, ok
}

func writeRegisters(file map[uint16]byte, offset uint16, data []byte) {
	for i, b := range data {
		file[offset+uint16(i)] = b
	}
}

func readRegisters(file map[uint16]byte, offset uint16, n int) ([]byte, bool) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := file[offset+uint16(i)]
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// loadAlStatusCode latches register_rd[0x0134..0x0135] into alStatusCode.
// ChangeState calls it on every backward transition, whether or not
// al_status reports an error; nothing is latched if either byte of
// register_rd is still unknown.
func (s *SubDevice) loadAlStatusCode() {
	b, ok := s.ReadRd(ethercat.RegAlStatusCode, 2)
	if !ok {
		return
	}
	code := ethercat.AlStatusCode(binary.LittleEndian.Uint16(b))
	s.alStatusCode = &code
}

// commitConfiguredAddress sets the device's configured station address.
// Used only by AprdCommandStepper once register_wr and register_rd agree.
func (s *SubDevice) commitConfiguredAddress(addr uint16) { s.configuredAddress = &addr }
