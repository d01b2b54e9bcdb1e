// Package codecutil provides the codec and clock primitives shared by the
// RTP session, storage and transcription packages: the fixed PCMU framing parameters,
// µ-law/PCM conversion, and the helpers that turn a raw capture blob back
// into the bytes a caller actually spoke.
package codecutil

import (
	"time"

	"github.com/zaf/g711"
)

// FrameDuration is the fixed RTP packetization interval for the voicemail
// media path. Every outbound chunk and every pacing tick is sized to this.
const FrameDuration = 20 * time.Millisecond

// Codec describes an RTP audio codec in enough detail to packetize and pace
// a stream. Only PCMU is ever populated for this service, but the shape
// mirrors how the rest of the pack represents codecs.
type Codec struct {
	Name        string
	PayloadType uint8
	SampleRate  uint32
	SampleDur   time.Duration
}

// PCMU is G.711 µ-law, 8 kHz, the only payload type this service negotiates.
var PCMU = Codec{"PCMU", 0, 8000, FrameDuration}

// SamplesPerFrame returns the number of samples in one 20ms frame. For PCMU
// at 8kHz this is 160.
func (c Codec) SamplesPerFrame() int {
	return int(c.SampleRate) * int(c.SampleDur) / int(time.Second)
}

// FrameBytes returns the payload bytes per frame. PCMU is 8-bit encoded, one
// byte per sample.
func (c Codec) FrameBytes() int {
	return c.SamplesPerFrame()
}

// TimestampIncrement returns the RTP timestamp increment carried by one
// frame of this codec.
func (c Codec) TimestampIncrement() uint32 {
	return uint32(c.SamplesPerFrame())
}

// DecodeUlaw converts µ-law encoded samples to 16-bit little-endian linear
// PCM, the format the transcription adapters expect on their input side.
func DecodeUlaw(ulaw []byte) []byte {
	return g711.DecodeUlaw(ulaw)
}

// EncodeUlaw converts 16-bit little-endian linear PCM to µ-law.
func EncodeUlaw(pcm []byte) []byte {
	return g711.EncodeUlaw(pcm)
}

// TrimNullBytes returns data with any trailing run of 0x00 bytes removed.
// A pre-allocated blob is zero-filled past its used length; this recovers
// the actual captured length without needing a separate counter column.
func TrimNullBytes(data []byte) []byte {
	end := len(data)
	for end > 0 && data[end-1] == 0x00 {
		end--
	}
	return data[:end]
}
