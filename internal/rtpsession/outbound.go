// Package rtpsession implements the two media-plane loops a call runs on
// its bound RTP socket: the outbound greeting player and the inbound
// capture/echo reader. Packetization follows the teacher's RTPStreamWriter
// shape (internal/rtpmanager/media/rtp_writer.go) adapted so the pacing
// ticker fires after each send rather than before it.
package rtpsession

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pion/rtp"

	"github.com/phunks/voicemail/internal/codecutil"
)

// GreetingDir is the directory pre-encoded greeting assets are read from.
var GreetingDir = "assets"

// AssetPath returns the on-disk path for a pre-encoded greeting named name
// for the given codec, e.g. AssetPath("voicemail", codecutil.PCMU) ->
// "assets/voicemail.pcmu".
func AssetPath(name string, codec codecutil.Codec) string {
	ext := "pcmu"
	if codec.PayloadType != codecutil.PCMU.PayloadType {
		ext = codec.Name
	}
	return fmt.Sprintf("%s/%s.%s", GreetingDir, name, ext)
}

// PlayGreeting streams a pre-encoded greeting file to remote over conn.
// Packets carry a fixed starting sequence of 1 and timestamp of 0 — not a
// randomized start — while ssrc is whatever the caller chose for the call
// (randomized per RFC 3550 at the dialog handler). The pacing ticker fires
// after each send so packet N+1 leaves at least one frame duration after
// packet N.
//
// PlayGreeting returns when the file has been fully sent, the context is
// cancelled, or a send fails.
func PlayGreeting(ctx context.Context, conn net.PacketConn, remote net.Addr, ssrc uint32, codec codecutil.Codec, name string) error {
	data, err := os.ReadFile(AssetPath(name, codec))
	if err != nil {
		return fmt.Errorf("rtpsession: reading greeting asset: %w", err)
	}
	return playBytes(ctx, conn, remote, ssrc, codec, data)
}

func playBytes(ctx context.Context, conn net.PacketConn, remote net.Addr, ssrc uint32, codec codecutil.Codec, data []byte) error {
	frameBytes := codec.FrameBytes()
	if frameBytes <= 0 {
		return fmt.Errorf("rtpsession: codec %s has no frame size", codec.Name)
	}

	ticker := time.NewTicker(codec.SampleDur)
	defer ticker.Stop()

	var seq uint16 = 1
	var timestamp uint32

	for offset := 0; offset < len(data); offset += frameBytes {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		end := offset + frameBytes
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    codec.PayloadType,
				SequenceNumber: seq,
				Timestamp:      timestamp,
				SSRC:           ssrc,
			},
			Payload: chunk,
		}

		raw, err := pkt.Marshal()
		if err != nil {
			return fmt.Errorf("rtpsession: marshaling greeting packet: %w", err)
		}
		if _, err := conn.WriteTo(raw, remote); err != nil {
			return fmt.Errorf("rtpsession: sending greeting packet: %w", err)
		}

		seq++
		timestamp += uint32(len(chunk))

		// The tick gates the *next* send, not this one: packet N+1 leaves
		// at least one frame duration after packet N left, matching the
		// original play_audio_file's post-send ticker.Tick().
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}

	return nil
}
