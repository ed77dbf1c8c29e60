package ethercat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// buildFrame packs a chain of synthetic datagrams into a single
// EtherCAT frame buffer and returns it; callers compare the parsed
// datagrams against their own synthDatagram inputs.
func buildFrame(datagrams []synthDatagram) []byte {
	total := 0
	for _, d := range datagrams {
		total += datagramHeaderSize + len(d.payload) + datagramWkcSize
	}
	buf := make([]byte, 2+total)
	EncodeFrameHeader(buf, uint16(total), EtherCATProtocolType)
	off := 2
	for i, d := range datagrams {
		more := i != len(datagrams)-1
		EncodeDatagramHeader(buf[off:], d.command, d.index, d.address, uint16(len(d.payload)), d.circular, more, d.irq)
		copy(buf[off+datagramHeaderSize:], d.payload)
		wkcOff := off + datagramHeaderSize + len(d.payload)
		buf[wkcOff] = byte(d.wkc)
		buf[wkcOff+1] = byte(d.wkc >> 8)
		off += datagramHeaderSize + len(d.payload) + datagramWkcSize
	}
	return buf
}

type synthDatagram struct {
	command  Command
	index    uint8
	address  uint32
	circular bool
	irq      uint16
	payload  []byte
	wkc      uint16
}

func TestParseDatagrams_roundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		var synth []synthDatagram
		for i := 0; i < n; i++ {
			plen := rapid.IntRange(0, 64).Draw(t, "plen")
			synth = append(synth, synthDatagram{
				command:  Command(rapid.IntRange(0, 0x0E).Draw(t, "command")),
				index:    uint8(rapid.IntRange(0, 255).Draw(t, "index")),
				address:  uint32(rapid.Uint32().Draw(t, "address")),
				circular: rapid.Bool().Draw(t, "circular"),
				irq:      uint16(rapid.IntRange(0, 65535).Draw(t, "irq")),
				payload:  rapid.SliceOfN(rapid.Byte(), plen, plen).Draw(t, "payload"),
				wkc:      uint16(rapid.IntRange(0, 65535).Draw(t, "wkc")),
			})
		}
		buf := buildFrame(synth)

		frame, err := NewFrame(buf)
		require.NoError(t, err)
		got, err := ParseDatagrams(frame)
		require.NoError(t, err)
		require.Len(t, got, len(synth))

		sum := 0
		for i, d := range got {
			want := synth[i]
			assert.Equal(t, want.command, d.Command())
			assert.Equal(t, want.index, d.Index())
			assert.Equal(t, want.address, d.Address())
			assert.Equal(t, want.circular, d.Circular())
			assert.Equal(t, want.irq, d.IRQ())
			assert.Equal(t, want.payload, d.Payload())
			assert.Equal(t, want.wkc, d.WKC())
			sum += d.OnWireSize()
		}
		assert.EqualValues(t, frame.TotalLength(), sum, "datagram length invariant: sum(10+length+2) must equal total_length")
	})
}

func TestParseDatagrams_invalidDatalength(t *testing.T) {
	buf := make([]byte, 2+10)
	// Declare a datagram whose length field claims more bytes than the frame carries.
	EncodeFrameHeader(buf, 10, EtherCATProtocolType)
	EncodeDatagramHeader(buf[2:], BRD, 0, 0, 0x7FF, false, false, 0)
	frame, err := NewFrame(buf)
	require.NoError(t, err)
	_, err = ParseDatagrams(frame)
	assert.ErrorIs(t, err, ErrInvalidDatalength)
}

func TestParseDatagrams_invalidHeaderWrongProtocol(t *testing.T) {
	buf := make([]byte, 2+12)
	EncodeFrameHeader(buf, 12, 0x02) // protocol_type != 0x01
	EncodeDatagramHeader(buf[2:], BRD, 0, 0, 0, false, false, 0)
	frame, err := NewFrame(buf)
	require.NoError(t, err)
	_, err = ParseDatagrams(frame)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestParseDatagrams_zeroDatagrams(t *testing.T) {
	buf := make([]byte, 2)
	EncodeFrameHeader(buf, 0, EtherCATProtocolType)
	frame, err := NewFrame(buf)
	require.NoError(t, err)
	_, err = ParseDatagrams(frame)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "BRD", BRD.String())
	assert.Equal(t, "UNKNOWN", Command(0x7F).String())
}

func TestDecodeState(t *testing.T) {
	s, ok := DecodeState(0x04)
	assert.True(t, ok)
	assert.Equal(t, SafeOp, s)

	_, ok = DecodeState(0x07)
	assert.False(t, ok)
}
