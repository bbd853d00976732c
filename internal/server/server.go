// Package server implements C9, the connection server: a TCP listener
// and an optional SSH listener that both drive the same request
// processor. Admission is capped with a weighted semaphore so a burst
// of connections degrades to rejections instead of unbounded fan-out.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"whoisgate/internal/color"
	"whoisgate/internal/logging"
	"whoisgate/internal/metrics"
	"whoisgate/internal/request"
)

// connState is the per-connection state machine named in §4.9.
type connState int

const (
	stateAccepted connState = iota
	stateReading
	stateProcessing
	stateWriting
	stateClosed
)

const maxLineBytes = 4096

// Server is the TCP WHOIS listener.
type Server struct {
	Addr           string
	Timeout        time.Duration
	MaxConnections int64
	DumpDir        string

	Processor *request.Processor
	Log       *logging.Logger
	Metrics   *metrics.Collector

	sem *semaphore.Weighted
}

// New builds a Server. MaxConnections <= 0 means unbounded admission.
func New(addr string, timeout time.Duration, maxConnections int64, dumpDir string, p *request.Processor, log *logging.Logger, m *metrics.Collector) *Server {
	if maxConnections <= 0 {
		maxConnections = 1 << 20
	}
	return &Server{
		Addr:           addr,
		Timeout:        timeout,
		MaxConnections: maxConnections,
		DumpDir:        dumpDir,
		Processor:      p,
		Log:            log.With("server"),
		Metrics:        m,
		sem:            semaphore.NewWeighted(maxConnections),
	}
}

// ListenAndServe accepts connections until ctx is cancelled, serving
// each on its own goroutine. It returns nil on a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.Addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.Log.Info("whois TCP server listening on %s", s.Addr)
	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.Log.Warn("accept: %v", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
	wg.Wait()
	return nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	state := stateAccepted
	defer func() { state = stateClosed; conn.Close() }()

	if s.Metrics != nil {
		s.Metrics.IncConnection("tcp")
		s.Metrics.ConnectionOpened()
		defer s.Metrics.ConnectionClosed()
	}

	if !s.sem.TryAcquire(1) {
		conn.Write([]byte("% too many connections, try again later\r\n"))
		return
	}
	defer s.sem.Release(1)

	peer := conn.RemoteAddr().String()
	state = stateReading
	_ = conn.SetDeadline(time.Now().Add(s.Timeout))

	reader := bufio.NewReaderSize(conn, maxLineBytes)
	line, err := readLine(reader)
	if err != nil {
		return
	}

	var dump *dumper
	if s.DumpDir != "" {
		dump = newDumper(s.DumpDir, peer)
		defer dump.Close()
		dump.WriteRequest(line)
	}

	rest, probe, scheme, hasScheme := color.ExtractHeader(line)
	if probe {
		conn.Write([]byte(color.CapabilityResponse))
		return
	}
	query := rest
	hasColor := hasScheme
	if hasScheme {
		_ = conn.SetDeadline(time.Now().Add(s.Timeout))
		second, err := readLine(reader)
		if err != nil {
			return
		}
		query = second
	}

	state = stateProcessing
	// Processing is bounded by its own deadline, not the server's
	// lifetime context, so a slow handler is cancelled when the
	// connection's timeout fires rather than running until the process
	// shuts down, per §4.9/§5.
	procCtx, procCancel := context.WithTimeout(ctx, s.Timeout)
	out := s.Processor.Process(procCtx, request.Input{
		RawQuery: query, Peer: peer, Scheme: scheme, HasColor: hasColor,
	})
	procCancel()

	state = stateWriting
	_ = conn.SetWriteDeadline(time.Now().Add(s.Timeout))
	if !strings.HasSuffix(out, "\r\n") {
		out += "\r\n"
	}
	conn.Write([]byte(out))
	if dump != nil {
		dump.WriteResponse(out)
	}
	_ = state
}

// readLine reads one CRLF- or LF-terminated line, capped at
// maxLineBytes, per §3's single-line query framing.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	if len(line) > maxLineBytes {
		line = line[:maxLineBytes]
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// dumper writes a raw request/response transcript to DumpDir, one
// file per connection, for offline debugging of upstream/patch
// behavior.
type dumper struct {
	f *os.File
}

func newDumper(dir, peer string) *dumper {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(peer)
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.log", name, time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return &dumper{}
	}
	return &dumper{f: f}
}

func (d *dumper) WriteRequest(line string) {
	if d.f != nil {
		fmt.Fprintf(d.f, "> %s\n", line)
	}
}

func (d *dumper) WriteResponse(resp string) {
	if d.f != nil {
		fmt.Fprintf(d.f, "< %s\n", resp)
	}
}

func (d *dumper) Close() {
	if d.f != nil {
		d.f.Close()
	}
}
