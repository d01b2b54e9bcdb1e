package mediabind

import (
	"fmt"
	"strconv"

	"github.com/pion/sdp/v3"
)

// Offer is the subset of an SDP offer the binder needs: the peer's RTP
// endpoint and its first offered payload type.
type Offer struct {
	PeerIP      string
	PeerPort    int
	PayloadType uint8
}

// SupportedPayloadType is the only payload type this service negotiates.
const SupportedPayloadType = 0 // PCMU

// ParseOffer extracts the connection address and the first audio media
// description's port and format from a raw SDP offer body. A missing
// connection line or audio port is a fatal parse error for the call; an
// unparseable format number defaults to payload type 0, matching the
// original implementation's behavior.
func ParseOffer(body []byte) (*Offer, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("mediabind: parsing offer SDP: %w", err)
	}

	var audio *sdp.MediaDescription
	for _, m := range desc.MediaDescriptions {
		if m.MediaName.Media == "audio" {
			audio = m
			break
		}
	}
	if audio == nil {
		return nil, fmt.Errorf("mediabind: offer has no audio media description")
	}
	if len(audio.MediaName.Formats) == 0 {
		return nil, fmt.Errorf("mediabind: offer's audio media description has no formats")
	}

	connInfo := audio.ConnectionInformation
	if connInfo == nil {
		connInfo = desc.ConnectionInformation
	}
	if connInfo == nil || connInfo.Address == nil {
		return nil, fmt.Errorf("mediabind: offer has no connection address")
	}

	pt, err := strconv.ParseUint(audio.MediaName.Formats[0], 10, 8)
	if err != nil {
		pt = 0
	}

	return &Offer{
		PeerIP:      connInfo.Address.Address,
		PeerPort:    audio.MediaName.Port.Value,
		PayloadType: uint8(pt),
	}, nil
}

// BuildAnswer renders the answer SDP exactly to SPEC_FULL.md §4.3's fixed
// template, substituting the local bound IP, port, and chosen SSRC. This is
// deliberately a literal format string rather than a pion/sdp/v3 Marshal
// call: Marshal's generic session serialization does not guarantee this
// exact line-for-line text, and the spec requires the literal template
// verbatim (down to the "s=rsipstack example" session name).
func BuildAnswer(localIP string, localPort int, ssrc uint32) []byte {
	return []byte(fmt.Sprintf(
		"v=0\r\n"+
			"o=- 0 0 IN IP4 %s\r\n"+
			"s=rsipstack example\r\n"+
			"c=IN IP4 %s\r\n"+
			"t=0 0\r\n"+
			"m=audio %d RTP/AVP %d\r\n"+
			"a=rtpmap:%d PCMU/8000\r\n"+
			"a=ssrc:%d\r\n"+
			"a=sendrecv\r\n",
		localIP, localIP, localPort, SupportedPayloadType, SupportedPayloadType, ssrc,
	))
}
