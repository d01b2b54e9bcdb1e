package rtpsession

import (
	"context"
	"errors"
	"net"
)

// Echo reflects every datagram received on conn back to its sender until
// ctx is cancelled or a receive error occurs. It is used only in
// diagnostic builds (configured via --echo), never alongside recording.
func Echo(ctx context.Context, conn net.PacketConn) error {
	buf := make([]byte, maxDatagram)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if _, err := conn.WriteTo(buf[:n], addr); err != nil {
			return err
		}
	}
}
