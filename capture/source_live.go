package capture

import (
	"context"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/kajity/ecdump/ethernet"
)

// etherCATFilter is the BPF filter applied to live capture; only
// EtherCAT traffic (EtherType 0x88A4) ever reaches the decoder.
const etherCATFilter = "ether proto 0x88a4"

const (
	liveSnaplen      = 2048
	livePollTimeout  = 100 * time.Millisecond
	liveChannelDepth = 100
	poolDepth        = liveChannelDepth
)

// LiveSource captures EtherCAT traffic from a named network interface
// via libpcap. Per the packet-source contract, all frames from a live
// source are classified from_main=false.
type LiveSource struct {
	handle *pcap.Handle
	out    chan Data
	pool   *bufferPool
	tee    chan<- RawFrame
}

// SetTee wires a Writer's input channel so every EtherCAT frame this
// source captures is also duplicated to it. Must be called before Run.
func (s *LiveSource) SetTee(ch chan<- RawFrame) { s.tee = ch }

// NewLiveSource opens iface in promiscuous mode with a short poll
// timeout, so the capture loop can observe ctx cancellation within
// livePollTimeout of a request to stop.
func NewLiveSource(iface string) (*LiveSource, error) {
	inactive, err := pcap.NewInactiveHandle(iface)
	if err != nil {
		return nil, err
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(liveSnaplen); err != nil {
		return nil, err
	}
	if err := inactive.SetPromisc(true); err != nil {
		return nil, err
	}
	if err := inactive.SetTimeout(livePollTimeout); err != nil {
		return nil, err
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, err
	}
	if err := handle.SetBPFFilter(etherCATFilter); err != nil {
		handle.Close()
		return nil, err
	}

	return &LiveSource{
		handle: handle,
		out:    make(chan Data, liveChannelDepth),
		pool:   newBufferPool(poolDepth, liveSnaplen),
	}, nil
}

func (s *LiveSource) Frames() <-chan Data { return s.out }

func (s *LiveSource) Recycle(buf []byte) { s.pool.put(buf) }

func (s *LiveSource) Close() error { s.handle.Close(); return nil }

// Run polls the handle until ctx is cancelled. SIGINT-driven
// cancellation is observed at the next read timeout, never more than
// livePollTimeout late.
func (s *LiveSource) Run(ctx context.Context) error {
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
		data, ci, err := s.handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
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
		case s.out <- Data{Timestamp: ci.Timestamp.Sub(captureStart), FromMain: false, Data: buf}:
		case <-ctx.Done():
			return nil
		}
	}
}
