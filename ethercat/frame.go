package ethercat

import "encoding/binary"

// EtherCATProtocolType is the only protocol_type value the decoder
// treats as EtherCAT traffic; anything else is rejected as
// ErrInvalidHeader.
const EtherCATProtocolType uint8 = 0x01

// Frame is a read-only, zero-copy view over the EtherCAT portion of an
// Ethernet payload (EtherType 0x88A4). Its lifetime is scoped to the
// captured packet buffer it was created from: callers must not retain a
// Frame (or any Datagram derived from it) past the buffer's reuse.
type Frame struct {
	buf []byte
}

// NewFrame returns a Frame over buf. An error is returned if buf is too
// short to hold the 2-byte frame header; callers should still treat
// ParseDatagrams's error return as authoritative for malformed frames.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < 2 {
		return Frame{}, ErrShortFrame
	}
	return Frame{buf: buf}, nil
}

// RawData returns the underlying slice the Frame was created from.
func (f Frame) RawData() []byte { return f.buf }

// header returns the little-endian 2-byte frame header.
func (f Frame) header() uint16 {
	return binary.LittleEndian.Uint16(f.buf[0:2])
}

// TotalLength returns the 11-bit total_length field: the number of
// bytes occupied by the datagram chain following the header.
func (f Frame) TotalLength() uint16 {
	return f.header() & 0x07FF
}

// ProtocolType returns the 4-bit protocol_type field. Only
// EtherCATProtocolType (0x01) is valid EtherCAT traffic.
func (f Frame) ProtocolType() uint8 {
	return uint8(f.header() >> 12)
}

// Payload returns the bytes following the 2-byte frame header, i.e. the
// raw datagram chain plus any trailing padding.
func (f Frame) Payload() []byte {
	return f.buf[2:]
}

// ValidateSize checks the frame's declared total_length against the
// buffer backing it and records any inconsistency in v.
func (f Frame) ValidateSize(v *Validator) {
	if int(f.TotalLength()) > len(f.Payload()) {
		v.AddError(ErrInvalidDatalength)
	}
	if f.ProtocolType() != EtherCATProtocolType {
		v.AddError(ErrInvalidHeader)
	}
}
