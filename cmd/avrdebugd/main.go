// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command avrdebugd listens for a single GDB remote-serial client and
// relays its commands to an AVR target over a debug probe. Run
// "avrdebugd --help" for flag documentation.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/avrdbg/avrdebugd/internal/controller"
	"github.com/avrdbg/avrdebugd/internal/gdbserver"
	"github.com/avrdbg/avrdebugd/internal/probe"
	"github.com/avrdbg/avrdebugd/internal/target"
)

var (
	listenAddr  string
	catalogDir  string
	probeFamily string
	device      string
	transport   string
	callTimeout time.Duration
	noAck       bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "avrdebugd",
	Short: "GDB remote-serial server for AVR debug probes",
	Long: `avrdebugd bridges a GDB remote-serial client to a physical AVR debug
probe (DebugWire, JTAG, PDI, or UPDI), accepting one client connection
at a time.`,
	RunE: runServe,
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", "localhost:2331", "address to accept the GDB client on")
	rootCmd.Flags().StringVar(&catalogDir, "catalog-dir", "./catalog", "directory of target descriptor JSON files")
	rootCmd.Flags().StringVar(&probeFamily, "probe", "debugwire", "probe family: debugwire, jtag, pdi, updi")
	rootCmd.Flags().StringVar(&device, "device", "/dev/ttyACM0", "serial device the probe is attached to")
	rootCmd.Flags().StringVar(&transport, "transport", "serial", "probe transport: serial")
	rootCmd.Flags().DurationVar(&callTimeout, "timeout", controller.DefaultTimeout, "per-call deadline for the probe worker")
	rootCmd.Flags().BoolVar(&noAck, "no-ack", false, "start the RSP connection already in no-ack mode")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log verbosity: debug, info, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := &leveledLogger{Logger: log.New(os.Stderr, "avrdebugd: ", log.LstdFlags), min: level}

	family, err := parseFamily(probeFamily)
	if err != nil {
		return err
	}

	catalog, err := target.LoadCatalog(catalogDir)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	tp, err := openTransport(transport, device, callTimeout)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer tp.Close()

	session := probe.New(family, tp, catalog)
	ctrl := controller.New(session)
	ctrl.Timeout = callTimeout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received %s, shutting down", sig)
		cancel()
	}()

	if err := ctrl.Activate(ctx); err != nil {
		return fmt.Errorf("activating controller: %w", err)
	}
	defer func() {
		shCtx, shCancel := context.WithTimeout(context.Background(), callTimeout)
		defer shCancel()
		if err := ctrl.Shutdown(shCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}
	defer ln.Close()
	logger.Infof("listening on %s (probe=%s device=%s)", listenAddr, family, device)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		logger.Debugf("client connected: %s", conn.RemoteAddr())
		serveOne(ctx, conn, ctrl, logger)
		logger.Debugf("client disconnected")
	}
}

// serveOne runs one client to completion. The daemon accepts a single
// client at a time (§5); the next Accept only resumes once this one
// returns.
func serveOne(ctx context.Context, conn net.Conn, ctrl *controller.Controller, logger *leveledLogger) {
	eng := gdbserver.New(conn, ctrl)
	if noAck {
		eng.SetNoAck(true)
	}
	if err := eng.Serve(ctx); err != nil {
		logger.Errorf("session ended: %v", err)
	}
}

func parseFamily(name string) (probe.Family, error) {
	switch name {
	case "debugwire":
		return probe.DebugWire, nil
	case "jtag":
		return probe.JTAG, nil
	case "pdi":
		return probe.PDI, nil
	case "updi":
		return probe.UPDI, nil
	default:
		return 0, fmt.Errorf("unknown probe family %q", name)
	}
}

func openTransport(kind, device string, timeout time.Duration) (probe.Transport, error) {
	switch kind {
	case "serial":
		return probe.OpenSerialTransport(device, 115200, timeout)
	default:
		return nil, fmt.Errorf("unsupported transport %q (only \"serial\" is built in; see SPEC_FULL.md §11)", kind)
	}
}

// logVerbosity orders the three levels --log-level accepts, lowest (most
// chatty) first.
type logVerbosity int

const (
	logDebug logVerbosity = iota
	logInfo
	logErrorLevel
)

func parseLogLevel(s string) (logVerbosity, error) {
	switch s {
	case "debug":
		return logDebug, nil
	case "info":
		return logInfo, nil
	case "error":
		return logErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, or error)", s)
	}
}

// leveledLogger filters *log.Logger output by --log-level; Errorf always
// prints, Infof prints at info and below, Debugf only at debug.
type leveledLogger struct {
	*log.Logger
	min logVerbosity
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	if l.min <= logDebug {
		l.Printf(format, v...)
	}
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	if l.min <= logInfo {
		l.Printf(format, v...)
	}
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.Printf(format, v...)
}
