package capture

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/kajity/ecdump/ethernet"
)

// fileChannelDepth matches the live path's depth; file replay has no
// backpressure deadline (the source waits indefinitely on a full
// channel) but a bounded channel still caps outstanding buffers.
const fileChannelDepth = 100

// packetReader is satisfied by both *pcapgo.Reader and *pcapgo.NgReader
// without any adaptation: both already expose this exact method.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// FileSource replays a PCAP or PCAPNG capture file. The container
// format is selected by file extension: ".pcapng" uses pcapgo.NgReader,
// anything else uses pcapgo.Reader.
type FileSource struct {
	f      *os.File
	reader packetReader
	out    chan Data
	pool   *bufferPool
	track  directionTracker
	tee    chan<- RawFrame
}

// SetTee wires a Writer's input channel so every EtherCAT frame this
// source replays is also duplicated to it. Must be called before Run.
func (s *FileSource) SetTee(ch chan<- RawFrame) { s.tee = ch }

// NewFileSource opens path and constructs the appropriate pcapgo
// reader for its container format.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var reader packetReader
	if strings.HasSuffix(strings.ToLower(path), ".pcapng") {
		r, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			f.Close()
			return nil, err
		}
		reader = r
	} else {
		r, err := pcapgo.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		reader = r
	}

	return &FileSource{
		f:      f,
		reader: reader,
		out:    make(chan Data, fileChannelDepth),
		pool:   newBufferPool(fileChannelDepth, liveSnaplen),
	}, nil
}

func (s *FileSource) Frames() <-chan Data { return s.out }

func (s *FileSource) Recycle(buf []byte) { s.pool.put(buf) }

func (s *FileSource) Close() error { return s.f.Close() }

// Run replays every packet in the file, in capture order, blocking
// indefinitely on a full output channel rather than dropping frames.
func (s *FileSource) Run(ctx context.Context) error {
	defer close(s.out)
	if s.tee != nil {
		defer close(s.tee)
	}
	var (
		captureStart time.Time
		vld          ethernet.Validator
	)
	for {
		if ctx.Err() != nil {
			return nil
		}
		data, ci, err := s.reader.ReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if captureStart.IsZero() {
			captureStart = ci.Timestamp
		}

		efrm, err := ethernet.NewFrame(data)
		if err != nil || efrm.EtherTypeOrSize() != ethernet.TypeEtherCAT {
			continue
		}
		vld.Reset()
		efrm.ValidateSize(&vld)
		if vld.HasError() {
			continue
		}
		fromMain := s.track.classify(data)

		if s.tee != nil {
			raw := append([]byte(nil), efrm.RawData()...)
			select {
			case s.tee <- RawFrame{Timestamp: ci.Timestamp, Data: raw}:
			case <-ctx.Done():
				return nil
			}
		}

		buf := s.pool.get()
		buf = append(buf[:0], efrm.Payload()...)

		select {
		case s.out <- Data{Timestamp: ci.Timestamp.Sub(captureStart), FromMain: fromMain, Data: buf}:
		case <-ctx.Done():
			return nil
		}
	}
}
