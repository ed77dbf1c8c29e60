// Package devicemanager dispatches a decoded EtherCAT datagram chain
// against a roster of subdevices, deriving each device's identity and
// AL state and flagging WKC and addressing violations. It owns its
// subdevices exclusively: no locking, no back-references.
package devicemanager

import (
	"time"

	"github.com/kajity/ecdump/ethercat"
	"github.com/kajity/ecdump/subdevice"
)

// Manager holds process-wide state for one capture session.
type Manager struct {
	devices       []*subdevice.SubDevice
	uninitialized bool
	configAddrMap map[uint16]int
	numFrames     uint64
}

// New returns a Manager with no devices yet; the roster is created by
// the first inbound BRD observed (see ProcessDatagram).
func New() *Manager {
	return &Manager{
		uninitialized: true,
		configAddrMap: make(map[uint16]int),
	}
}

// Devices returns the current device roster, ordered by bus position
// (index 0 is closest to main). It is only meaningful after
// initialization (see Uninitialized).
func (m *Manager) Devices() []*subdevice.SubDevice { return m.devices }

// Uninitialized reports whether the first inbound BRD has not yet been
// observed.
func (m *Manager) Uninitialized() bool { return m.uninitialized }

// NumFrames returns the number of frames analyzed so far.
func (m *Manager) NumFrames() uint64 { return m.numFrames }

// ProcessFrame advances num_frames and dispatches every datagram in
// chain against the current roster, in on-wire order. timestamp is the
// frame's capture time relative to capture start and is stamped onto
// every finding the chain produces. Decode failures never reach this
// function (the caller is expected to have already skipped them).
func (m *Manager) ProcessFrame(chain []ethercat.Datagram, fromMain bool, timestamp time.Duration) []Finding {
	m.numFrames++
	var findings []Finding
	for _, d := range chain {
		findings = append(findings, m.ProcessDatagram(d, fromMain)...)
	}
	for i := range findings {
		findings[i].Timestamp = timestamp
	}
	return findings
}

// ProcessDatagram routes a single datagram to its command handler.
func (m *Manager) ProcessDatagram(d ethercat.Datagram, fromMain bool) []Finding {
	cmd := d.Command()

	if m.uninitialized {
		if cmd != ethercat.BRD || fromMain {
			return nil
		}
		m.initializeRoster(int(d.WKC()))
		// The initializing BRD still carries a broadcast register
		// image; fall through so it is applied like any other BRD.
	}

	switch {
	case cmd.IsBroadcast():
		return m.dispatchBroadcast(d, fromMain)
	case cmd.IsPositionAddressed():
		return m.dispatchPositionAddressed(d, fromMain)
	case cmd.IsNodeAddressed():
		return m.dispatchNodeAddressed(d, fromMain)
	default:
		// Logical addressing and NOP carry no per-device register
		// effects in this model.
		return nil
	}
}

// initializeRoster creates n devices in Init state and clears
// Uninitialized. n is the WKC of the initializing inbound BRD: the
// number of devices that saw the broadcast.
func (m *Manager) initializeRoster(n int) {
	m.devices = make([]*subdevice.SubDevice, n)
	for i := range m.devices {
		m.devices[i] = subdevice.New()
	}
	m.uninitialized = false
}

func (m *Manager) dispatchBroadcast(d ethercat.Datagram, fromMain bool) []Finding {
	cmd := d.Command()
	offset := d.AddressHigh16()
	payload := d.Payload()

	var findings []Finding
	wkcOK := true
	if !fromMain {
		expected := uint16(len(m.devices))
		if d.WKC() != expected {
			wkcOK = false
			findings = append(findings, Finding{
				Kind: InvalidWkc, FrameNum: m.numFrames, Command: cmd, FromMain: fromMain,
				ExpectedWkc: expected, ActualWkc: d.WKC(),
			})
		}
	}

	for _, dev := range m.devices {
		findings = append(findings, m.applyRegisterWrite(dev, cmd, offset, payload, fromMain)...)
		if wkcOK {
			findings = append(findings, tagEvents(m.stepDevice(dev, cmd), m.numFrames)...)
		}
	}
	return findings
}

func (m *Manager) dispatchPositionAddressed(d ethercat.Datagram, fromMain bool) []Finding {
	cmd := d.Command()
	p := d.AddressLow16()
	_ = d.AddressHigh16()

	// Subtraction on uint16 operands wraps mod 65536 per Go's defined
	// unsigned-integer overflow behavior: the outbound field is the
	// negated bus index, and by the inbound half every device has added
	// one to it, so len(devices) - p recovers the index.
	var idx int
	if fromMain {
		idx = int(0 - p)
	} else {
		idx = int(uint16(len(m.devices)) - p)
	}
	if idx >= len(m.devices) {
		return []Finding{{Kind: InvalidAutoIncrementAddress, FrameNum: m.numFrames, Command: cmd, FromMain: fromMain, Position: p}}
	}
	return m.dispatchSingle(m.devices[idx], d, fromMain)
}

func (m *Manager) dispatchNodeAddressed(d ethercat.Datagram, fromMain bool) []Finding {
	cmd := d.Command()
	addr := d.AddressLow16()
	idx, ok := m.configAddrMap[addr]
	if !ok {
		return []Finding{{Kind: InvalidConfiguredAddress, FrameNum: m.numFrames, Command: cmd, FromMain: fromMain, Address: addr}}
	}
	return m.dispatchSingle(m.devices[idx], d, fromMain)
}

func (m *Manager) dispatchSingle(dev *subdevice.SubDevice, d ethercat.Datagram, fromMain bool) []Finding {
	cmd := d.Command()
	offset := d.AddressHigh16()

	var findings []Finding
	wkcOK := true
	if !fromMain {
		expected := uint16(1)
		if d.WKC() != expected {
			wkcOK = false
			findings = append(findings, Finding{
				Kind: InvalidWkc, FrameNum: m.numFrames, Command: cmd, FromMain: fromMain,
				ExpectedWkc: expected, ActualWkc: d.WKC(),
			})
		}
	}

	findings = append(findings, m.applyRegisterWrite(dev, cmd, offset, d.Payload(), fromMain)...)

	if wkcOK {
		findings = append(findings, tagEvents(m.stepDevice(dev, cmd), m.numFrames)...)
	}

	// The step may have just committed the device's configured address
	// (AprdCommandStepper); link it to the bus index immediately so a
	// node-addressed command later in the same frame resolves.
	if dev.ConfiguredAddress() != nil {
		if _, already := m.configAddrMap[*dev.ConfiguredAddress()]; !already {
			m.registerConfiguredAddress(dev)
		}
	}
	return findings
}

// registerConfiguredAddress links dev's committed configured address to
// its bus index in configAddrMap.
func (m *Manager) registerConfiguredAddress(dev *subdevice.SubDevice) {
	for i, d := range m.devices {
		if d == dev {
			m.configAddrMap[*dev.ConfiguredAddress()] = i
			return
		}
	}
}

// applyRegisterWrite updates dev's register files per the command/
// direction routing table in the datagram's offset, and returns no
// findings (register writes never themselves fail).
func (m *Manager) applyRegisterWrite(dev *subdevice.SubDevice, cmd ethercat.Command, offset uint16, payload []byte, fromMain bool) []Finding {
	switch cmd {
	case ethercat.BWR, ethercat.APWR, ethercat.FPWR:
		// Outbound APWR/FPWR/BWR payload is the authoritative
		// main-to-device write, regardless of direction flag.
		dev.WriteWr(offset, payload)
	case ethercat.APRD, ethercat.FPRD:
		if !fromMain {
			dev.WriteRd(offset, payload)
		}
	case ethercat.BRD:
		if !fromMain {
			dev.WriteBrd(offset, payload)
		}
	}
	return nil
}

// stepDevice runs the command-appropriate stepper against dev and
// returns its raw ESM events.
func (m *Manager) stepDevice(dev *subdevice.SubDevice, cmd ethercat.Command) []subdevice.Event {
	return subdevice.Step(stepperFor(cmd), dev, m.numFrames)
}

func stepperFor(cmd ethercat.Command) subdevice.CommandStepper {
	switch cmd {
	case ethercat.BRD:
		return subdevice.BrdCommandStepper{}
	case ethercat.APRD:
		return subdevice.AprdCommandStepper{}
	case ethercat.FPRD:
		return subdevice.FprdCommandStepper{}
	default:
		return subdevice.DefaultCommandStepper{}
	}
}
