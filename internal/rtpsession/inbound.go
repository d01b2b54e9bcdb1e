package rtpsession

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/rtp"
)

// HangupTimeout is the hard cap on a single inbound capture: the only
// timeout in the ingest path, with no silence detection.
const HangupTimeout = 30 * time.Second

const maxDatagram = 1500

// AppendFunc writes bytes captured at the given running offset and returns
// the offset to resume at next call. It is satisfied by the blob store's
// append primitive (C4); inbound capture never knows about SQL.
type AppendFunc func(ctx context.Context, offset int, payload []byte) (int, error)

// Capture reads datagrams from conn until the call context is cancelled, a
// receive error occurs, or HangupTimeout elapses, appending each accepted
// RTP payload through appendFn. It returns the total elapsed capture time.
//
// Packets that fail to parse, that do not carry payload type 0, or that
// carry CSRC identifiers or header extensions are dropped: the legacy
// "&pcmu[..len-12]" fixed-header slice is not replicated here (see
// SPEC_FULL.md §4.2 and §9(b)).
func Capture(ctx context.Context, conn net.PacketConn, appendFn AppendFunc) (time.Duration, error) {
	start := time.Now()
	deadline := start.Add(HangupTimeout)
	offset := 0

	buf := make([]byte, maxDatagram)

	for {
		select {
		case <-ctx.Done():
			return time.Since(start), nil
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return time.Since(start), nil
		}

		if deadliner, ok := conn.(interface{ SetReadDeadline(time.Time) error }); ok {
			_ = deadliner.SetReadDeadline(time.Now().Add(remaining))
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return time.Since(start), nil
			}
			return time.Since(start), fmt.Errorf("rtpsession: capture receive: %w", err)
		}

		payload, ok := parseInboundPayload(buf[:n])
		if !ok {
			continue
		}

		offset, err = appendFn(ctx, offset, payload)
		if err != nil {
			return time.Since(start), fmt.Errorf("rtpsession: capture append: %w", err)
		}
	}
}

// parseInboundPayload parses buf as an RTP packet and returns its payload
// when the packet is payload type 0 (PCMU) and carries no CSRC identifiers
// or header extensions. Anything else is dropped.
func parseInboundPayload(buf []byte) ([]byte, bool) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, false
	}
	if pkt.PayloadType != 0 {
		return nil, false
	}
	if len(pkt.CSRC) > 0 {
		return nil, false
	}
	if pkt.Extension {
		return nil, false
	}
	return pkt.Payload, true
}
