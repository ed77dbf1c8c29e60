package subdevice

import (
	"testing"

	"github.com/kajity/ecdump/ethercat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrdCommandStepper_initSweep(t *testing.T) {
	s := New()
	s.WriteBrd(ethercat.RegAlStatus, []byte{0x01}) // Init
	events := Step(BrdCommandStepper{}, s, 2)
	assert.Empty(t, events)
	assert.Equal(t, ethercat.Init, s.State())
	assert.False(t, s.AlStatus().Error)
}

func TestBrdCommandStepper_clearsOnUndecodableNibble(t *testing.T) {
	s := New()
	s.WriteBrd(ethercat.RegAlStatus, []byte{0x07}) // undefined nibble
	Step(BrdCommandStepper{}, s, 1)
	assert.False(t, s.AlStatus().StateOK)
}

func TestAprdCommandStepper_commitsOnlyOnAgreement(t *testing.T) {
	s := New()
	s.WriteWr(ethercat.RegConfiguredStationAddress, []byte{0x34, 0x12})
	Step(AprdCommandStepper{}, s, 1)
	assert.Nil(t, s.ConfiguredAddress(), "register_rd not yet written, must not commit")

	s.WriteRd(ethercat.RegConfiguredStationAddress, []byte{0x99, 0x99})
	Step(AprdCommandStepper{}, s, 2)
	assert.Nil(t, s.ConfiguredAddress(), "wr/rd disagree, must not commit")

	s.WriteRd(ethercat.RegConfiguredStationAddress, []byte{0x34, 0x12})
	Step(AprdCommandStepper{}, s, 3)
	require.NotNil(t, s.ConfiguredAddress())
	assert.EqualValues(t, 0x1234, *s.ConfiguredAddress())
}

func TestFprdCommandStepper_forwardTransition(t *testing.T) {
	s := New()
	s.WriteWr(ethercat.RegAlControl, []byte{byte(ethercat.PreOp)})
	s.WriteRd(ethercat.RegAlStatus, []byte{byte(ethercat.PreOp)})
	events := Step(FprdCommandStepper{}, s, 4)
	require.Len(t, events, 1)
	assert.Equal(t, CleanTransition, events[0].Kind)
	assert.Equal(t, ethercat.PreOp, s.State())
	assert.False(t, s.HasESMError())
}

func TestFprdCommandStepper_backwardTransitionWithError(t *testing.T) {
	s := New()
	s.WriteWr(ethercat.RegAlControl, []byte{byte(ethercat.PreOp)})
	s.WriteRd(ethercat.RegAlStatus, []byte{byte(ethercat.PreOp)})
	Step(FprdCommandStepper{}, s, 4)
	require.Equal(t, ethercat.PreOp, s.State())

	s.state = ethercat.Op                         // simulate a prior clean move to Op
	s.WriteRd(ethercat.RegAlStatus, []byte{0x12}) // PreOp | error
	s.WriteRd(ethercat.RegAlStatusCode, []byte{0x01, 0x00})
	events := Step(FprdCommandStepper{}, s, 5)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, BackwardTransition, ev.Kind)
	assert.Equal(t, ethercat.Op, ev.From)
	assert.Equal(t, ethercat.PreOp, ev.To)
	assert.True(t, ev.HasError)
	assert.True(t, s.HasESMError())
	require.NotNil(t, s.AlStatusCode())
	assert.Equal(t, ethercat.UnspecifiedError, *s.AlStatusCode())
}

func TestChangeState_illegalTransitionWithoutPriorControl(t *testing.T) {
	s := New()
	s.WriteRd(ethercat.RegAlStatus, []byte{byte(ethercat.PreOp)})
	events := Step(FprdCommandStepper{}, s, 1)
	// No al_control has ever been observed and the state moved forward
	// with no matching request: both IllegalTransition and
	// InvalidStateTransition fire, per the decision tree's independent
	// checks.
	require.Len(t, events, 2)
	assert.Equal(t, IllegalTransition, events[0].Kind)
	assert.Equal(t, ethercat.PreOp, events[0].To)
	assert.Equal(t, InvalidStateTransition, events[1].Kind)
	assert.Equal(t, ethercat.Init, events[1].Requested)
	assert.Equal(t, ethercat.PreOp, events[1].Current)
}

func TestChangeState_flagsBootstrapInComparisons(t *testing.T) {
	s := New()
	s.WriteWr(ethercat.RegAlControl, []byte{byte(ethercat.Bootstrap)})
	s.WriteRd(ethercat.RegAlStatus, []byte{byte(ethercat.Bootstrap)})
	events := Step(FprdCommandStepper{}, s, 1)
	require.Len(t, events, 1)
	assert.Equal(t, CleanTransition, events[0].Kind)
	assert.True(t, events[0].BootstrapOrdering)

	// Leaving Bootstrap for SafeOp reads as a forward step on the
	// linear order; it must still carry the flag.
	s.WriteWr(ethercat.RegAlControl, []byte{byte(ethercat.SafeOp)})
	s.WriteRd(ethercat.RegAlStatus, []byte{byte(ethercat.SafeOp)})
	events = Step(FprdCommandStepper{}, s, 2)
	require.Len(t, events, 1)
	assert.True(t, events[0].BootstrapOrdering)
}

func TestChangeState_noopWhenStatusUndecodable(t *testing.T) {
	s := New()
	events := ChangeState(s, 1)
	assert.Nil(t, events)
	assert.Equal(t, ethercat.Init, s.State())
}

func TestRegisterSeparation(t *testing.T) {
	s := New()
	s.WriteWr(0x2000, []byte{0xAA, 0xBB, 0xCC})
	got, ok := s.ReadWr(0x2000, 3)
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, got)

	_, ok = s.ReadRd(0x2000, 3)
	assert.False(t, ok)
	_, ok = s.ReadBrd(0x2000, 3)
	assert.False(t, ok)
}

func TestConfiguredAlias(t *testing.T) {
	s := New()
	assert.Nil(t, s.ConfiguredAlias())
	s.WriteWr(ethercat.RegConfiguredStationAlias, []byte{0x78, 0x56})
	require.NotNil(t, s.ConfiguredAlias())
	assert.EqualValues(t, 0x5678, *s.ConfiguredAlias())
}
