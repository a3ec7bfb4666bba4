// luxsend is a development sender for exercising a bridge: it transmits
// keep-alive and color-data datagrams over the wire protocol.
//
// Colors are hex arguments: 6 digits for RGB, 8 for RGBW.
//
//	luxsend -addr 192.168.1.40:23042 -keepalive
//	luxsend -addr 192.168.1.40:23042 -offset 10 ff0000 00ff00 0000ff
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/luxbridge/luxbridge/internal/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "luxsend: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "127.0.0.1:23042", "bridge address")
	offset := flag.Uint("offset", 0, "LED index of the first color")
	keepalive := flag.Bool("keepalive", false, "send a keep-alive and wait for the echo")
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if *keepalive {
		return sendKeepAlive(conn)
	}

	if flag.NArg() == 0 {
		return fmt.Errorf("no colors given (hex, e.g. ff0000 or ff000080)")
	}
	if *offset > 0xFFFF {
		return fmt.Errorf("offset out of range: %d", *offset)
	}
	payload, err := parseColors(flag.Args())
	if err != nil {
		return err
	}

	datagram := protocol.AppendColorWrite(nil, uint16(*offset), payload)
	if _, err := conn.Write(datagram); err != nil {
		return err
	}
	fmt.Printf("sent %d bytes (offset %d, %d colors)\n", len(datagram), *offset, flag.NArg())
	return nil
}

func sendKeepAlive(conn net.Conn) error {
	if _, err := conn.Write(protocol.AppendKeepAlive(nil)); err != nil {
		return err
	}
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("no echo received: %w", err)
	}
	if n == 1 && buf[0] == protocol.HeaderKeepAlive {
		fmt.Println("bridge alive")
		return nil
	}
	return fmt.Errorf("unexpected echo: % x", buf[:n])
}

// parseColors decodes hex color arguments. All arguments must share one
// width so the bridge infers the record size correctly.
func parseColors(args []string) ([]byte, error) {
	width := len(args[0])
	if width != 6 && width != 8 {
		return nil, fmt.Errorf("color %q must be 6 (RGB) or 8 (RGBW) hex digits", args[0])
	}
	payload := make([]byte, 0, len(args)*width/2)
	for _, arg := range args {
		if len(arg) != width {
			return nil, fmt.Errorf("mixed color widths: %q vs %d digits", arg, width)
		}
		b, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("bad color %q: %w", arg, err)
		}
		payload = append(payload, b...)
	}
	return payload, nil
}
