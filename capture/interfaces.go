package capture

import "github.com/google/gopacket/pcap"

// Interface describes one capture-capable network interface, for the
// -D/--list-interfaces CLI surface.
type Interface struct {
	Name        string
	Description string
	Up          bool
}

// ListInterfaces enumerates interfaces libpcap can open for live
// capture.
func ListInterfaces() ([]Interface, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, len(devs))
	for i, d := range devs {
		out[i] = Interface{
			Name:        d.Name,
			Description: d.Description,
			Up:          d.Flags&pcap.PCAP_IF_UP != 0,
		}
	}
	return out, nil
}
