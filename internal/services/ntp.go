package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

// ntpPacket is the 48-byte NTPv3 client/server packet, RFC 5905
// §7.3, in the subset this probe needs.
type ntpPacket struct {
	liVnMode       byte
	stratum        byte
	poll           int8
	precision      int8
	rootDelay      uint32
	rootDispersion uint32
	refID          uint32
	refTimestamp   uint64
	origTimestamp  uint64
	rxTimestamp    uint64
	txTimestamp    uint64
}

func (p ntpPacket) marshal() []byte {
	b := make([]byte, 48)
	b[0], b[1], b[2], b[3] = p.liVnMode, p.stratum, byte(p.poll), byte(p.precision)
	binary.BigEndian.PutUint32(b[4:8], p.rootDelay)
	binary.BigEndian.PutUint32(b[8:12], p.rootDispersion)
	binary.BigEndian.PutUint32(b[12:16], p.refID)
	binary.BigEndian.PutUint64(b[16:24], p.refTimestamp)
	binary.BigEndian.PutUint64(b[24:32], p.origTimestamp)
	binary.BigEndian.PutUint64(b[32:40], p.rxTimestamp)
	binary.BigEndian.PutUint64(b[40:48], p.txTimestamp)
	return b
}

func unmarshalNTP(b []byte) (ntpPacket, bool) {
	if len(b) < 48 {
		return ntpPacket{}, false
	}
	return ntpPacket{
		liVnMode:       b[0],
		stratum:        b[1],
		poll:           int8(b[2]),
		precision:      int8(b[3]),
		rootDelay:      binary.BigEndian.Uint32(b[4:8]),
		rootDispersion: binary.BigEndian.Uint32(b[8:12]),
		refID:          binary.BigEndian.Uint32(b[12:16]),
		refTimestamp:   binary.BigEndian.Uint64(b[16:24]),
		origTimestamp:  binary.BigEndian.Uint64(b[24:32]),
		rxTimestamp:    binary.BigEndian.Uint64(b[32:40]),
		txTimestamp:    binary.BigEndian.Uint64(b[40:48]),
	}, true
}

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900) and the Unix epoch (1970).
const ntpEpochOffset = 2208988800

func ntpToUnixMicros(ts uint64) int64 {
	seconds := int64(ts >> 32)
	fraction := float64(ts & 0xFFFFFFFF)
	micros := int64(fraction / 4294967296.0 * 1e6)
	return (seconds-ntpEpochOffset)*1_000_000 + micros
}

func ntpStratumDesc(stratum byte) string {
	switch {
	case stratum == 0:
		return "unspecified or invalid"
	case stratum == 1:
		return "primary reference (e.g. GPS, atomic clock)"
	case stratum <= 15:
		return "secondary reference (via NTP)"
	default:
		return "reserved"
	}
}

// registerNTP wires -NTP to a direct NTPv3 client query (RFC 5905):
// unlike the gateway's other time-adjacent features this talks raw
// UDP itself rather than going through an HTTP API, since the NTP
// wire protocol is the whole point of the probe.
func (d *Deps) registerNTP(reg *registry.Registry) {
	reg.Register(classify.KindNTP, func(ctx *registry.Context) (string, error) {
		server := strings.TrimSpace(ctx.Query.Payload)
		if server == "" {
			return comment("usage: <server>-NTP, e.g. pool.ntp.org-NTP"), nil
		}

		addr := server
		if _, _, err := net.SplitHostPort(server); err != nil {
			addr = net.JoinHostPort(server, "123")
		}

		result, err := queryNTPServer(ctx.Ctx, addr)
		if err != nil {
			return comment("NTP query to %s failed: %v", server, err), nil
		}

		var b strings.Builder
		b.WriteString(comment("NTP time synchronization test for %s", server))
		fmt.Fprintf(&b, "resolved: %s\n", result.peer)
		fmt.Fprintf(&b, "stratum: %d (%s)\n", result.stratum, ntpStratumDesc(result.stratum))
		fmt.Fprintf(&b, "precision: 2^%d seconds\n", result.precision)
		fmt.Fprintf(&b, "root-delay: %.1f ms\n", result.rootDelayMS)
		fmt.Fprintf(&b, "root-dispersion: %.1f ms\n", result.rootDispersionMS)
		fmt.Fprintf(&b, "server-time: %s\n", result.serverTime.Format(time.RFC3339))
		fmt.Fprintf(&b, "local-time: %s\n", result.localTime.Format(time.RFC3339))
		fmt.Fprintf(&b, "offset: %.3f ms\n", result.offsetMS)
		fmt.Fprintf(&b, "round-trip: %.3f ms\n", result.delayMS)
		b.WriteString(comment("this is a test query only; the system clock is not modified"))
		return b.String(), nil
	}, false)
}

type ntpResult struct {
	peer             string
	stratum          byte
	precision        int8
	rootDelayMS      float64
	rootDispersionMS float64
	serverTime       time.Time
	localTime        time.Time
	offsetMS         float64
	delayMS          float64
}

// queryNTPServer sends one NTPv3 client request and computes the
// clock offset/round-trip delay from the four timestamps per RFC
// 5905 §8. ctx bounds both the dial and the response wait so a
// non-responding server cannot hold the connection past its
// deadline.
func queryNTPServer(ctx context.Context, addr string) (ntpResult, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return ntpResult{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return ntpResult{}, err
	}

	req := ntpPacket{liVnMode: 0x1B} // LI=0, VN=3, mode=3 (client)
	t1 := time.Now()
	if _, err := conn.Write(req.marshal()); err != nil {
		return ntpResult{}, err
	}

	resp := make([]byte, 48)
	n, err := conn.Read(resp)
	if err != nil {
		return ntpResult{}, err
	}
	t4 := time.Now()
	if n < 48 {
		return ntpResult{}, fmt.Errorf("short NTP response (%d bytes)", n)
	}

	pkt, ok := unmarshalNTP(resp)
	if !ok {
		return ntpResult{}, fmt.Errorf("malformed NTP response")
	}

	t1us := t1.UnixMicro()
	t4us := t4.UnixMicro()
	t2us := ntpToUnixMicros(pkt.rxTimestamp)
	t3us := ntpToUnixMicros(pkt.txTimestamp)

	offsetUS := ((t2us - t1us) + (t3us - t4us)) / 2
	delayUS := (t4us - t1us) - (t3us - t2us)

	return ntpResult{
		peer:             conn.RemoteAddr().String(),
		stratum:          pkt.stratum,
		precision:        pkt.precision,
		rootDelayMS:      float64(pkt.rootDelay) / 65536.0 * 1000.0,
		rootDispersionMS: float64(pkt.rootDispersion) / 65536.0 * 1000.0,
		serverTime:       time.UnixMicro(t3us).UTC(),
		localTime:        t4.UTC(),
		offsetMS:         float64(offsetUS) / 1000.0,
		delayMS:          float64(delayUS) / 1000.0,
	}, nil
}
