// Package report turns DeviceManager findings and decode errors into
// structured log records, correlated against frame number and
// direction so a capture's findings can be matched back to
// tcpdump/Wireshark output.
package report

import (
	"fmt"
	"log/slog"

	"github.com/kajity/ecdump/devicemanager"
	"github.com/kajity/ecdump/ethercat"
	"github.com/kajity/ecdump/internal"
	"github.com/kajity/ecdump/subdevice"
)

// Reporter wraps a *slog.Logger and owns the level/field mapping for
// every finding and decode error the pipeline can produce. A nil
// logger discards everything.
type Reporter struct {
	log *slog.Logger
}

// New returns a Reporter writing to log. log may be nil.
func New(log *slog.Logger) *Reporter {
	return &Reporter{log: log}
}

func (r *Reporter) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(r.log, lvl, msg, attrs...)
}

// DecodeError reports a malformed frame or datagram chain; the
// offending frame is skipped and the pipeline continues.
func (r *Reporter) DecodeError(frameNum uint64, err error) {
	r.logattrs(slog.LevelWarn, "decode error",
		slog.Uint64("frame", frameNum),
		slog.String("err", err.Error()),
	)
}

// Findings reports every finding produced by one frame, dispatching
// each to the method matching its kind.
func (r *Reporter) Findings(findings []devicemanager.Finding) {
	for _, f := range findings {
		r.Finding(f)
	}
}

// Finding reports a single finding at the level appropriate to its
// kind: debug for clean ESM transitions, warn for WKC and addressing
// violations, error for ESM violations.
func (r *Reporter) Finding(f devicemanager.Finding) {
	switch f.Kind {
	case devicemanager.CleanTransition:
		r.cleanTransition(f)
	case devicemanager.InvalidStateTransition:
		r.invalidStateTransition(f)
	case devicemanager.BackwardTransition:
		r.backwardTransition(f)
	case devicemanager.IllegalTransition:
		r.illegalTransition(f)
	case devicemanager.TransitionFailed:
		r.transitionFailed(f)
	case devicemanager.InvalidWkc:
		r.invalidWkc(f)
	case devicemanager.InvalidAutoIncrementAddress:
		r.invalidAutoIncrementAddress(f)
	case devicemanager.InvalidConfiguredAddress:
		r.invalidConfiguredAddress(f)
	}
	if f.BootstrapOrdering {
		r.logattrs(slog.LevelWarn, "esm: bootstrap took part in a linear state comparison; the real state machine treats bootstrap as a side branch",
			slog.Uint64("frame", f.FrameNum),
		)
	}
}

func (r *Reporter) cleanTransition(f devicemanager.Finding) {
	r.logattrs(slog.LevelDebug, "esm: clean transition",
		slog.Uint64("frame", f.FrameNum),
		slog.String("from", f.From.String()),
		slog.String("to", f.To.String()),
	)
}

func (r *Reporter) invalidStateTransition(f devicemanager.Finding) {
	r.logattrs(slog.LevelError, "esm: invalid state transition",
		slog.Uint64("frame", f.FrameNum),
		slog.String("requested", f.Requested.String()),
		slog.String("current", f.Current.String()),
	)
}

func (r *Reporter) backwardTransition(f devicemanager.Finding) {
	r.logattrs(slog.LevelError, "esm: backward transition",
		slog.Uint64("frame", f.FrameNum),
		slog.String("from", f.From.String()),
		slog.String("to", f.To.String()),
		slog.Bool("has_error", f.HasError),
	)
}

func (r *Reporter) illegalTransition(f devicemanager.Finding) {
	r.logattrs(slog.LevelError, "esm: illegal transition before al control observed",
		slog.Uint64("frame", f.FrameNum),
		slog.String("from", f.From.String()),
		slog.String("to", f.To.String()),
	)
}

func (r *Reporter) transitionFailed(f devicemanager.Finding) {
	r.logattrs(slog.LevelError, "esm: transition failed",
		slog.Uint64("frame", f.FrameNum),
		slog.String("requested", f.Requested.String()),
		slog.String("current", f.Current.String()),
	)
}

func (r *Reporter) invalidWkc(f devicemanager.Finding) {
	r.logattrs(slog.LevelWarn, "invalid working counter",
		slog.Uint64("frame", f.FrameNum),
		slog.Duration("timestamp", f.Timestamp),
		slog.String("command", f.Command.String()),
		slog.Bool("from_main", f.FromMain),
		slog.Uint64("expected_wkc", uint64(f.ExpectedWkc)),
		slog.Uint64("actual_wkc", uint64(f.ActualWkc)),
	)
}

func (r *Reporter) invalidAutoIncrementAddress(f devicemanager.Finding) {
	r.logattrs(slog.LevelWarn, "auto-increment address outside roster",
		slog.Uint64("frame", f.FrameNum),
		slog.String("command", f.Command.String()),
		slog.Bool("from_main", f.FromMain),
		slog.Uint64("position", uint64(f.Position)),
	)
}

func (r *Reporter) invalidConfiguredAddress(f devicemanager.Finding) {
	r.logattrs(slog.LevelWarn, "unknown configured station address",
		slog.Uint64("frame", f.FrameNum),
		slog.String("command", f.Command.String()),
		slog.Bool("from_main", f.FromMain),
		slog.Uint64("address", uint64(f.Address)),
	)
}

// Summary emits one record per subdevice at the end of a capture
// session: bus index, configured address and alias if learned, final
// AL state, latched status code, and whether the device ever took a
// backward transition. Logged at info so it survives the default
// warn-level filter only when the operator asked for it.
func (r *Reporter) Summary(numFrames uint64, devices []*subdevice.SubDevice) {
	r.logattrs(slog.LevelInfo, "capture summary",
		slog.Uint64("frames", numFrames),
		slog.Int("devices", len(devices)),
	)
	for i, dev := range devices {
		attrs := []slog.Attr{
			slog.Int("position", i),
			slog.String("state", dev.State().String()),
			slog.Bool("esm_error", dev.HasESMError()),
		}
		if addr := dev.ConfiguredAddress(); addr != nil {
			attrs = append(attrs, slog.String("configured_address", fmt.Sprintf("0x%04x", *addr)))
		}
		if alias := dev.ConfiguredAlias(); alias != nil {
			attrs = append(attrs, slog.String("configured_alias", fmt.Sprintf("0x%04x", *alias)))
		}
		if code := dev.AlStatusCode(); code != nil {
			attrs = append(attrs, slog.String("al_status_code", code.String()))
		}
		r.logattrs(slog.LevelInfo, "subdevice", attrs...)
	}
}

// AlStatusCode logs one AL status code at info level, tagged with
// frameNum. The ecdump command does not call it.
func (r *Reporter) AlStatusCode(frameNum uint64, code ethercat.AlStatusCode) {
	r.logattrs(slog.LevelInfo, "al status code",
		slog.Uint64("frame", frameNum),
		slog.String("code", code.String()),
	)
}
