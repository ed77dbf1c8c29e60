// Command ecdump is a passive analyzer for EtherCAT fieldbus capture
// streams. It consumes traffic live from a network interface or from
// a PCAP/PCAPNG file and reports subdevice identity, AL state, and
// EtherCAT State Machine violations as structured log records.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kajity/ecdump/capture"
	"github.com/kajity/ecdump/devicemanager"
	"github.com/kajity/ecdump/ethercat"
	"github.com/kajity/ecdump/internal"
	"github.com/kajity/ecdump/report"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		file           = pflag.StringP("file", "f", "", "read capture from a PCAP/PCAPNG file")
		iface          = pflag.StringP("interface", "i", "", "live capture from the named interface")
		writePath      = pflag.StringP("write", "w", "", "tee received frames to a PCAP file")
		listInterfaces = pflag.BoolP("list-interfaces", "D", false, "list capture interfaces and exit")
		verbosity      int
	)
	pflag.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	pflag.Parse()

	if *listInterfaces {
		return doListInterfaces()
	}

	log := newLogger(verbosity)
	rep := report.New(log)

	if *file != "" && *writePath != "" && samePath(*file, *writePath) {
		fmt.Fprintln(os.Stderr, "ecdump: --write path must differ from --file path")
		return 1
	}

	src, err := openSource(*file, *iface)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ecdump:", err)
		return 1
	}
	defer src.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		writer *capture.Writer
		werrc  chan error
	)
	if *writePath != "" {
		out, err := os.Create(*writePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ecdump:", err)
			return 1
		}
		defer out.Close()
		writer, err = capture.NewWriter(out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ecdump:", err)
			return 1
		}
		if teer, ok := src.(interface{ SetTee(chan<- capture.RawFrame) }); ok {
			teer.SetTee(writer.Tee())
		}
		werrc = make(chan error, 1)
		go func() {
			err := writer.Run(ctx)
			werrc <- err
			if err != nil {
				// A dead writer would otherwise wedge the source on a
				// full tee channel.
				cancel()
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx) }()

	mgr := devicemanager.New()
	var seen uint64
	for data := range src.Frames() {
		seen++
		analyzeFrame(mgr, rep, seen, data)
		src.Recycle(data.Data)
	}
	rep.Summary(mgr.NumFrames(), mgr.Devices())

	if err := <-errc; err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "ecdump:", err)
		return 1
	}
	if werrc != nil {
		if err := <-werrc; err != nil {
			fmt.Fprintln(os.Stderr, "ecdump:", err)
			return 1
		}
	}
	return 0
}

// analyzeFrame decodes one captured frame and reports every finding
// it produces. A decode failure skips the frame; the pipeline
// continues per the error handling design. frameNum counts every
// frame seen by the source, including ones that fail to decode.
func analyzeFrame(mgr *devicemanager.Manager, rep *report.Reporter, frameNum uint64, data capture.Data) {
	frm, err := ethercat.NewFrame(data.Data)
	if err != nil {
		rep.DecodeError(frameNum, err)
		return
	}
	var vld ethercat.Validator
	frm.ValidateSize(&vld)
	if vld.HasError() {
		rep.DecodeError(frameNum, vld.Err())
		return
	}
	chain, err := ethercat.ParseDatagrams(frm)
	if err != nil {
		rep.DecodeError(frameNum, err)
		return
	}
	findings := mgr.ProcessFrame(chain, data.FromMain, data.Timestamp)
	rep.Findings(findings)
}

func openSource(file, iface string) (capture.Source, error) {
	if file != "" {
		return capture.NewFileSource(file)
	}
	if iface == "" {
		ifaces, err := capture.ListInterfaces()
		if err != nil {
			return nil, err
		}
		for _, i := range ifaces {
			if i.Up {
				iface = i.Name
				break
			}
		}
		if iface == "" {
			return nil, fmt.Errorf("no operational capture interface found, specify one with -i")
		}
	}
	return capture.NewLiveSource(iface)
}

func doListInterfaces() int {
	ifaces, err := capture.ListInterfaces()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ecdump:", err)
		return 1
	}
	for _, i := range ifaces {
		state := "down"
		if i.Up {
			state = "up"
		}
		fmt.Printf("%s\t%s\t%s\n", i.Name, state, i.Description)
	}
	return 0
}

// newLogger builds the slog.Logger for verbosity n: 0 disables
// logging entirely, 1 is warn, 2 is debug, 3+ is trace.
func newLogger(n int) *slog.Logger {
	if n == 0 {
		return nil
	}
	level := slog.LevelWarn
	switch {
	case n >= 3:
		level = internal.LevelTrace
	case n == 2:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func samePath(a, b string) bool {
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return os.SameFile(ai, bi)
}
