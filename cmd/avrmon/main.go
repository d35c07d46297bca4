// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command avrmon is an interactive REPL that exercises avrdebugd's
// monitor-command surface (the same qRcmd text a GDB "monitor ..."
// command sends) without a full GDB client attached — the role the
// teacher's ogle demo tooling plays for its own debugger.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/avrdbg/avrdebugd/internal/rsp"
)

func main() {
	addr := flag.String("addr", "localhost:2331", "avrdebugd listen address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "avrmon: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	codec := rsp.New(conn, rsp.DefaultMaxPacketSize)

	rl, err := readline.New("avrmon> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "avrmon: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("connected to %s; type a monitor command (help, reset, status, pins, version), Ctrl-D to quit\n", *addr)
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return
			}
			fmt.Fprintf(os.Stderr, "avrmon: %v\n", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		reply, err := monitor(codec, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "avrmon: %v\n", err)
			continue
		}
		fmt.Print(reply)
	}
}

// monitor sends one "monitor <text>" command as a qRcmd packet and
// returns the hex-decoded reply text.
func monitor(codec *rsp.Codec, text string) (string, error) {
	packet := "qRcmd," + hex.EncodeToString([]byte(text))
	if err := codec.WritePacket([]byte(packet)); err != nil {
		return "", fmt.Errorf("sending command: %w", err)
	}
	resp, err := codec.ReadPacket()
	if err != nil {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	if len(resp) == 0 {
		return "(no reply)\n", nil
	}
	if resp[0] == 'E' && len(resp) == 3 {
		return "", fmt.Errorf("server reported %s", string(resp))
	}
	decoded, err := hex.DecodeString(string(resp))
	if err != nil {
		return string(resp) + "\n", nil
	}
	return string(decoded), nil
}
