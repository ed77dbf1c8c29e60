package capture

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_roundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	frame := buildEthernetFrame([6]byte{1, 2, 3, 4, 5, 6}, 0x88A4, buildBrdPayload(0x01, 1))
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Tee() <- RawFrame{Timestamp: ts, Data: frame}
	close(w.in)
	require.NoError(t, w.Run(context.Background()))

	r, err := pcapgo.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, frame, data)
	assert.True(t, ci.Timestamp.Equal(ts))
}

func TestWriter_stopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
}
