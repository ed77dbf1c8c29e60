package capture

import "github.com/kajity/ecdump/ethernet"

// directionTracker classifies frames as from_main: the first EtherCAT
// frame's Ethernet source MAC becomes the reference; any later frame
// sharing that source is from_main=true.
type directionTracker struct {
	mainSrc *[6]byte
}

// classify strips nothing; it reads the Ethernet source address from
// the raw frame (before EtherCAT header stripping) and returns whether
// this frame should be labeled from_main.
func (d *directionTracker) classify(raw []byte) bool {
	efrm, err := ethernet.NewFrame(raw)
	if err != nil {
		return false
	}
	src := efrm.SourceHardwareAddr()
	if d.mainSrc == nil {
		var captured [6]byte
		captured = *src
		d.mainSrc = &captured
		return true
	}
	return *src == *d.mainSrc
}
