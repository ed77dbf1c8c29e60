package report

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/kajity/ecdump/devicemanager"
	"github.com/kajity/ecdump/ethercat"
	"github.com/kajity/ecdump/subdevice"
)

func newTestReporter() (*Reporter, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(log), &buf
}

func decodeLastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var rec map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestReporter_cleanTransitionLogsAtDebug(t *testing.T) {
	r, buf := newTestReporter()
	r.Finding(devicemanager.Finding{
		Kind: devicemanager.CleanTransition, FrameNum: 1,
		From: ethercat.Init, To: ethercat.PreOp,
	})
	rec := decodeLastRecord(t, buf)
	if rec["level"] != "DEBUG" {
		t.Fatalf("want DEBUG, got %v", rec["level"])
	}
}

func TestReporter_invalidWkcLogsAtWarn(t *testing.T) {
	r, buf := newTestReporter()
	r.Finding(devicemanager.Finding{
		Kind: devicemanager.InvalidWkc, FrameNum: 2, Command: ethercat.BRD,
		ExpectedWkc: 3, ActualWkc: 2,
	})
	rec := decodeLastRecord(t, buf)
	if rec["level"] != "WARN" {
		t.Fatalf("want WARN, got %v", rec["level"])
	}
	if rec["expected_wkc"] != float64(3) || rec["actual_wkc"] != float64(2) {
		t.Fatalf("wkc fields not propagated: %v", rec)
	}
}

func TestReporter_backwardTransitionLogsAtError(t *testing.T) {
	r, buf := newTestReporter()
	r.Finding(devicemanager.Finding{
		Kind: devicemanager.BackwardTransition, FrameNum: 3,
		From: ethercat.SafeOp, To: ethercat.PreOp, HasError: true,
	})
	rec := decodeLastRecord(t, buf)
	if rec["level"] != "ERROR" {
		t.Fatalf("want ERROR, got %v", rec["level"])
	}
}

func TestReporter_nilLoggerDiscardsSilently(t *testing.T) {
	r := New(nil)
	r.Finding(devicemanager.Finding{Kind: devicemanager.InvalidWkc})
	r.DecodeError(1, ethercat.ErrInvalidHeader)
}

func TestReporter_summary(t *testing.T) {
	r, buf := newTestReporter()
	devs := []*subdevice.SubDevice{subdevice.New(), subdevice.New()}
	r.Summary(7, devs)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("want 1 header + 2 device lines, got %d", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatal(err)
	}
	if rec["frames"] != float64(7) || rec["devices"] != float64(2) {
		t.Fatalf("summary header fields not propagated: %v", rec)
	}
	rec = decodeLastRecord(t, buf)
	if rec["position"] != float64(1) || rec["state"] != "Init" {
		t.Fatalf("device line fields not propagated: %v", rec)
	}
}

func TestReporter_findingsDispatchesAll(t *testing.T) {
	r, buf := newTestReporter()
	r.Findings([]devicemanager.Finding{
		{Kind: devicemanager.CleanTransition, FrameNum: 1},
		{Kind: devicemanager.InvalidWkc, FrameNum: 2},
	})
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("want 2 log lines, got %d", len(lines))
	}
}
