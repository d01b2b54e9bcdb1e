package dialog

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/phunks/voicemail/internal/codecutil"
	"github.com/phunks/voicemail/internal/mediabind"
	"github.com/phunks/voicemail/internal/rtpsession"
)

// fakeSession satisfies Session without a live SIP transaction, so
// HandleCalling can be driven from a table test.
type fakeSession struct {
	mu       sync.Mutex
	sdp      []byte
	status   sip.StatusCode
	byeCount int
}

func (f *fakeSession) RespondSDP(sdp []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sdp = sdp
	return nil
}

func (f *fakeSession) Respond(statusCode sip.StatusCode, reason string, body []byte, headers ...sip.Header) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = statusCode
	return nil
}

func (f *fakeSession) Bye(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byeCount++
	return nil
}

func (f *fakeSession) byes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byeCount
}

func (f *fakeSession) answer() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sdp
}

func testOffer(t *testing.T, port int) []byte {
	t.Helper()
	return []byte("v=0\r\n" +
		"o=- 0 0 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"c=IN IP4 127.0.0.1\r\n" +
		"t=0 0\r\n" +
		"m=audio " + strconv.Itoa(port) + " RTP/AVP 0\r\n" +
		"a=rtpmap:0 PCMU/8000\r\n")
}

func TestHandleCallingRejectsBadOffer(t *testing.T) {
	reg := NewRegistry()
	sess := &fakeSession{}
	invite := sip.NewRequest(sip.INVITE, sip.Uri{})
	invite.SetBody([]byte("not an sdp offer"))

	ev := CallingEvent{
		ID:      "call-1",
		From:    `<sip:alice@example.com>;tag=abc`,
		Invite:  invite,
		Session: sess,
	}
	deps := Deps{LocalIP: "127.0.0.1", RTPStartPort: 40000, Registry: reg}

	HandleCalling(context.Background(), ev, deps)

	if sess.status != statusNotAcceptableHere {
		t.Fatalf("status = %d, want %d", sess.status, statusNotAcceptableHere)
	}
	if _, ok := reg.Load("call-1"); ok {
		t.Fatal("rejected call should not be registered")
	}
}

// TestHandleCallingPlaysGreetingThenByes drives the default (non-echo,
// non-recording) mode: accept, play a one-frame greeting asset, and BYE
// once playback finishes, without ever blocking on a peer that never
// sends anything back.
func TestHandleCallingPlaysGreetingThenByes(t *testing.T) {
	origDir := rtpsession.GreetingDir
	rtpsession.GreetingDir = t.TempDir()
	defer func() { rtpsession.GreetingDir = origDir }()

	frame := make([]byte, codecutil.PCMU.FrameBytes())
	if err := os.WriteFile(filepath.Join(rtpsession.GreetingDir, "voicemail.pcmu"), frame, 0o644); err != nil {
		t.Fatalf("writing greeting asset: %v", err)
	}

	peerConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listening peer socket: %v", err)
	}
	defer peerConn.Close()
	peerPort := peerConn.LocalAddr().(*net.UDPAddr).Port

	reg := NewRegistry()
	sess := &fakeSession{}
	invite := sip.NewRequest(sip.INVITE, sip.Uri{})
	invite.SetBody(testOffer(t, peerPort))

	ev := CallingEvent{
		ID:      "call-2",
		From:    `<sip:bob@example.com>;tag=xyz`,
		Invite:  invite,
		Session: sess,
	}
	deps := Deps{
		LocalIP:      "127.0.0.1",
		RTPStartPort: 41000,
		Registry:     reg,
	}

	HandleCalling(context.Background(), ev, deps)

	if sess.answer() == nil {
		t.Fatal("expected an SDP answer to be sent")
	}

	answer, err := mediabind.ParseOffer(sess.answer())
	if err != nil {
		t.Fatalf("parsing our own answer: %v", err)
	}
	if answer.PayloadType != codecutil.PCMU.PayloadType {
		t.Fatalf("answer payload type = %d", answer.PayloadType)
	}

	if _, ok := reg.Load("call-2"); !ok {
		t.Fatal("accepted call should be registered immediately")
	}

	deadline := time.After(2 * time.Second)
	for sess.byes() == 0 {
		select {
		case <-deadline:
			t.Fatal("media task never sent BYE after greeting finished")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, ok := reg.Load("call-2"); ok {
		t.Fatal("call should be deregistered once its media task ends")
	}
}
