// Package mediabind implements the media session binder (C3): allocating a
// local RTP socket for an inbound call and building the SDP offer/answer
// that goes with it. Port probing follows the even-port scheme in the
// teacher's services/rtpmanager/portpool, but binds a real socket instead
// of only reserving a logical slot, matching original_source's
// build_rtp_conn probing loop.
package mediabind

import (
	"fmt"
	"net"
)

// ProbeAttempts is how many even ports starting at the configured base are
// tried before a call fails with a port-exhaustion error.
const ProbeAttempts = 100

// Bound is a local RTP socket together with the IP and port it is bound
// to, ready to hand to the dialog handler and to BuildAnswer.
type Bound struct {
	Conn      net.PacketConn
	LocalIP   string
	LocalPort int
}

// Close releases the bound socket.
func (b *Bound) Close() error {
	if b == nil || b.Conn == nil {
		return nil
	}
	return b.Conn.Close()
}

// BindRTPSocket rounds an odd rtpStartPort up to the next even port, probes
// base+2k for k in [0, ProbeAttempts), even ports only, and binds the first
// one that succeeds on localIP. It returns
// a port-exhaustion error if all attempts fail.
func BindRTPSocket(localIP string, rtpStartPort int) (*Bound, error) {
	base := rtpStartPort
	if base%2 != 0 {
		base++
	}

	for k := 0; k < ProbeAttempts; k++ {
		port := base + 2*k
		addr := &net.UDPAddr{IP: net.ParseIP(localIP), Port: port}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			continue
		}
		return &Bound{Conn: conn, LocalIP: localIP, LocalPort: port}, nil
	}

	return nil, fmt.Errorf("mediabind: no free RTP port in range [%d, %d)", base, base+2*ProbeAttempts)
}
