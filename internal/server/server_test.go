package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/logging"
	"whoisgate/internal/registry"
	"whoisgate/internal/request"
)

func TestServerRespondsToQuery(t *testing.T) {
	reg := registry.New()
	reg.Register(classify.KindHelp, func(ctx *registry.Context) (string, error) {
		return "help text\r\n", nil
	}, false)
	proc := &request.Processor{Registry: reg}

	srv := New("127.0.0.1:0", time.Second, 8, "", proc, logging.New("error"), nil)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", srv.Addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.Addr = ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(ctx, conn)
		}
	}()
	defer ln.Close()

	conn, err := net.Dial("tcp", srv.Addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("HELP\r\n"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(line) != "help text" {
		t.Errorf("got %q, want %q", strings.TrimSpace(line), "help text")
	}
}

func TestServerColorProbeRespondsWithCapability(t *testing.T) {
	reg := registry.New()
	proc := &request.Processor{Registry: reg}
	srv := New("127.0.0.1:0", time.Second, 8, "", proc, logging.New("error"), nil)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", srv.Addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.Addr = ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		srv.handleConn(ctx, conn)
	}()
	defer ln.Close()

	conn, err := net.Dial("tcp", srv.Addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("X-WHOIS-COLOR-PROBE: 1.0\r\n"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(line, "X-WHOIS-COLOR-SUPPORT") {
		t.Errorf("got %q, want capability response", line)
	}
}
