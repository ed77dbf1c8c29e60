package ethercat

import "errors"

// Decode errors, surfaced by the chained frame/datagram parser. None
// is fatal to the analyzer: the offending frame is skipped and the
// pipeline continues (see analyzeFrame in cmd/ecdump).
var (
	// ErrInvalidHeader is returned when the frame header's protocol type
	// is not EtherCAT (0x01), or when the datagram chain does not
	// consume exactly total_length bytes, or produces zero datagrams.
	ErrInvalidHeader = errors.New("ethercat: invalid header")
	// ErrInvalidDatalength is returned when a datagram's declared length
	// would read past the frame's declared total_length or the
	// underlying buffer.
	ErrInvalidDatalength = errors.New("ethercat: invalid datagram length")
	// ErrShortFrame is returned by NewFrame when the buffer is too
	// short to hold even the 2-byte frame header.
	ErrShortFrame = errors.New("ethercat: frame shorter than header")
)
