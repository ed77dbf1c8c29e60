package capture

import (
	"context"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// RawFrame is a full, un-stripped Ethernet frame duplicated to the
// writer thread when -w/--write is set.
type RawFrame struct {
	Timestamp time.Time
	Data      []byte
}

// writerChannelDepth bounds the second channel the concurrency model
// describes for the optional write-back path.
const writerChannelDepth = 100

// Writer tees captured EtherCAT-carrying Ethernet frames to a PCAP
// file via pcapgo, on its own thread so file I/O never competes with
// analysis for the capture channel's attention.
type Writer struct {
	w  *pcapgo.Writer
	in chan RawFrame
}

// NewWriter wraps an already opened f and emits a standard Ethernet
// PCAP header with a generous snaplen.
func NewWriter(f writableFile) (*Writer, error) {
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, err
	}
	return &Writer{w: w, in: make(chan RawFrame, writerChannelDepth)}, nil
}

// writableFile is satisfied by *os.File; named narrowly so tests can
// substitute an in-memory io.Writer.
type writableFile interface {
	Write(p []byte) (n int, err error)
}

// Tee returns the channel the writer consumes duplicated frames from.
func (w *Writer) Tee() chan<- RawFrame { return w.in }

// Run drains Tee until ctx is cancelled or the channel is closed by
// the source thread exiting; draining to the close means every frame
// the source duplicated reaches the file before Run returns.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case frame, ok := <-w.in:
			if !ok {
				return nil
			}
			ci := gopacket.CaptureInfo{Timestamp: frame.Timestamp, CaptureLength: len(frame.Data), Length: len(frame.Data)}
			if err := w.w.WritePacket(ci, frame.Data); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
