package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"whoisgate/internal/logging"
	"whoisgate/internal/metrics"
	"whoisgate/internal/request"
)

// SSHServer exposes a REPL-style WHOIS surface over SSH: after auth,
// each line typed at the "whois> " prompt is run through the same
// request processor as the TCP listener, per §4.9.
type SSHServer struct {
	Addr        string
	HostKeyPath string
	Timeout     time.Duration

	Processor *request.Processor
	Log       *logging.Logger
	Metrics   *metrics.Collector

	config *ssh.ServerConfig
}

func NewSSHServer(addr, hostKeyPath string, timeout time.Duration, p *request.Processor, log *logging.Logger, m *metrics.Collector) (*SSHServer, error) {
	keyBytes, err := os.ReadFile(hostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("server: reading SSH host key %s: %w", hostKeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("server: parsing SSH host key: %w", err)
	}

	cfg := &ssh.ServerConfig{
		// The SSH surface is an anonymous WHOIS REPL, not a login
		// shell; any client key or password is accepted.
		NoClientAuth: true,
	}
	cfg.AddHostKey(signer)

	return &SSHServer{
		Addr: addr, HostKeyPath: hostKeyPath, Timeout: timeout,
		Processor: p, Log: log.With("ssh"), Metrics: m, config: cfg,
	}, nil
}

func (s *SSHServer) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server: ssh listen %s: %w", s.Addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.Log.Info("whois SSH server listening on %s", s.Addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.Log.Warn("accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *SSHServer) handleConn(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	if s.Metrics != nil {
		s.Metrics.IncConnection("ssh")
		s.Metrics.ConnectionOpened()
		defer s.Metrics.ConnectionClosed()
	}

	sconn, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		s.Log.Debug("ssh handshake: %v", err)
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		ch, chReqs, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ctx, nc, ch, chReqs, sconn.RemoteAddr().String())
	}
}

// sessionHistory is the REPL's per-session history buffer required by
// §4.9: a bounded ring of past queries, recalled with "!!" (last
// query) or listed with "history", in the style of a shell history
// file rather than a full readline implementation.
type sessionHistory struct {
	lines []string
}

const sessionHistoryLimit = 50

func (h *sessionHistory) add(line string) {
	h.lines = append(h.lines, line)
	if len(h.lines) > sessionHistoryLimit {
		h.lines = h.lines[len(h.lines)-sessionHistoryLimit:]
	}
}

func (h *sessionHistory) last() (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	return h.lines[len(h.lines)-1], true
}

func (h *sessionHistory) render() string {
	if len(h.lines) == 0 {
		return "% history is empty\r\n"
	}
	var b strings.Builder
	for i, line := range h.lines {
		fmt.Fprintf(&b, "%3d  %s\r\n", i+1, line)
	}
	return b.String()
}

// serveSession runs the per-line REPL for one SSH session. nc is the
// raw connection underlying ch: ssh.Channel has no deadline methods,
// so the idle-read deadline required by §8 is enforced on nc directly
// and reset before every blocking read, not just around processing.
func (s *SSHServer) serveSession(ctx context.Context, nc net.Conn, ch ssh.Channel, reqs <-chan *ssh.Request, peer string) {
	defer ch.Close()

	go func() {
		for req := range reqs {
			switch req.Type {
			case "shell", "pty-req":
				if req.WantReply {
					req.Reply(true, nil)
				}
			default:
				if req.WantReply {
					req.Reply(false, nil)
				}
			}
		}
	}()

	var hist sessionHistory
	scanner := bufio.NewScanner(ch)
	fmt.Fprint(ch, "whois> ")
	for {
		_ = nc.SetDeadline(time.Now().Add(s.Timeout))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(ch, "whois> ")
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return
		}
		if strings.EqualFold(line, "history") {
			fmt.Fprint(ch, hist.render())
			fmt.Fprint(ch, "whois> ")
			continue
		}
		if line == "!!" {
			last, ok := hist.last()
			if !ok {
				fmt.Fprint(ch, "% no previous query\r\n")
				fmt.Fprint(ch, "whois> ")
				continue
			}
			line = last
		} else {
			hist.add(line)
		}

		// Processing is bounded by its own deadline independent of the
		// idle-read deadline above, so a slow handler cannot hold the
		// connection open past s.Timeout either way.
		procCtx, procCancel := context.WithTimeout(ctx, s.Timeout)
		out := s.Processor.Process(procCtx, request.Input{RawQuery: line, Peer: peer})
		procCancel()

		fmt.Fprint(ch, out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Fprint(ch, "\r\n")
		}
		fmt.Fprint(ch, "whois> ")
	}
}
