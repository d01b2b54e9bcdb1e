package dialog

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"

	"github.com/emiago/sipgo/sip"

	"github.com/phunks/voicemail/internal/caller"
	"github.com/phunks/voicemail/internal/codecutil"
	"github.com/phunks/voicemail/internal/idgen"
	"github.com/phunks/voicemail/internal/mediabind"
	"github.com/phunks/voicemail/internal/notify"
	"github.com/phunks/voicemail/internal/rtpsession"
	"github.com/phunks/voicemail/internal/store"
)

// SIP response codes used for accept-time failures.
const (
	statusNotAcceptableHere   sip.StatusCode = 488
	statusInternalServerError sip.StatusCode = 500
)

// Deps are the collaborators the dialog handler needs to drive a call:
// where to bind RTP sockets, whether this process records or echoes, and
// the storage/notification backends.
type Deps struct {
	LocalIP      string
	RTPStartPort int
	Rec          bool
	Echo         bool
	Store        *store.Store
	Registry     *Registry
	Transcriber  notify.Transcriber
	Notifier     notify.Notifier
}

// CallingEvent is what the signalling loop's dialog pump hands to the
// handler on a new server-invite dialog: the From header travels with the
// event rather than through shared mutable state (SPEC_FULL.md §5, §9).
type CallingEvent struct {
	ID      string
	From    string
	Invite  *sip.Request
	Session Session
}

// Session is the subset of *sipgo.DialogServerSession the handler needs;
// narrowed to an interface so tests can exercise HandleCalling without a
// live SIP transaction.
type Session interface {
	RespondSDP(sdp []byte) error
	Respond(statusCode sip.StatusCode, reason string, body []byte, headers ...sip.Header) error
	Bye(ctx context.Context) error
}

// HandleCalling runs the full C5 orchestration for one inbound call:
// negotiate media, accept, spawn exactly one media mode, and BYE when it
// ends.
func HandleCalling(ctx context.Context, ev CallingEvent, deps Deps) {
	ssrc, err := randomSSRC()
	if err != nil {
		slog.Error("dialog: generating SSRC failed", "id", ev.ID, "error", err)
		respondError(ev.Session, statusInternalServerError)
		return
	}

	callerID := caller.Extract(ev.From)

	offer, err := mediabind.ParseOffer(ev.Invite.Body())
	if err != nil {
		slog.Error("dialog: parsing SDP offer failed", "id", ev.ID, "error", err)
		respondError(ev.Session, statusNotAcceptableHere)
		return
	}
	if offer.PayloadType != mediabind.SupportedPayloadType {
		slog.Error("dialog: unsupported payload type", "id", ev.ID, "payload_type", offer.PayloadType)
		respondError(ev.Session, statusNotAcceptableHere)
		return
	}

	bound, err := mediabind.BindRTPSocket(deps.LocalIP, deps.RTPStartPort)
	if err != nil {
		slog.Error("dialog: binding RTP socket failed", "id", ev.ID, "error", err)
		respondError(ev.Session, statusInternalServerError)
		return
	}

	answer := mediabind.BuildAnswer(bound.LocalIP, bound.LocalPort, ssrc)
	if err := ev.Session.RespondSDP(answer); err != nil {
		slog.Error("dialog: accepting dialog failed", "id", ev.ID, "error", err)
		bound.Close()
		return
	}

	callCtx, cancel := context.WithCancel(ctx)
	call := &Call{ID: ev.ID, Session: ev.Session, Cancel: cancel}
	deps.Registry.Store(call)

	rec := deps.Rec
	echo := deps.Echo
	peer := &net.UDPAddr{IP: net.ParseIP(offer.PeerIP), Port: offer.PeerPort}

	go runMediaTask(callCtx, cancel, call, bound, peer, ssrc, callerID, rec, echo, deps, ev.Session)
}

func runMediaTask(ctx context.Context, cancel context.CancelFunc, call *Call, bound *mediabind.Bound, peer net.Addr, ssrc uint32, callerID string, rec, echo bool, deps Deps, session Session) {
	defer deps.Registry.Delete(call.ID)
	defer cancel()
	defer bound.Close()

	switch {
	case echo:
		if err := rtpsession.Echo(ctx, bound.Conn); err != nil {
			slog.Warn("dialog: echo loop ended with error", "id", call.ID, "error", err)
		}

	case rec:
		runRecording(ctx, call, bound, peer, ssrc, callerID, deps)

	default:
		if err := rtpsession.PlayGreeting(ctx, bound.Conn, peer, ssrc, codecutil.PCMU, "voicemail"); err != nil {
			slog.Warn("dialog: greeting playback ended with error", "id", call.ID, "error", err)
		}
	}

	if err := session.Bye(context.Background()); err != nil {
		slog.Debug("dialog: BYE note", "id", call.ID, "error", err)
	}
}

func runRecording(ctx context.Context, call *Call, bound *mediabind.Bound, peer net.Addr, ssrc uint32, callerID string, deps Deps) {
	rowID := idgen.New()
	if err := deps.Store.Allocate(ctx, rowID, callerID, store.DefaultCapacity); err != nil {
		// Per SPEC_FULL.md §7, an insert collision here is a per-call-media
		// error: the 200 OK already went out, so there is no accept-time
		// reply left to fail. Ending the media task and sending BYE below is
		// the only corrective action available.
		slog.Error("dialog: allocating voicemail row failed, ending call", "id", call.ID, "error", err)
		return
	}
	call.SetRowID(rowID)

	if err := rtpsession.PlayGreeting(ctx, bound.Conn, peer, ssrc, codecutil.PCMU, "voicemail"); err != nil {
		slog.Warn("dialog: greeting playback before recording ended with error", "id", call.ID, "error", err)
		return
	}

	appendFn := func(ctx context.Context, off int, payload []byte) (int, error) {
		return deps.Store.Append(ctx, rowID, off, payload), nil
	}

	if _, err := rtpsession.Capture(ctx, bound.Conn, appendFn); err != nil {
		slog.Warn("dialog: capture ended with error", "id", call.ID, "error", err)
	}

	// Capture doesn't thread its running offset back out; recover it the
	// same way a restart would, by re-deriving used length from the blob.
	data, err := deps.Store.ReadVoice(context.Background(), rowID)
	if err != nil {
		slog.Error("dialog: reading back captured audio failed", "id", call.ID, "error", err)
		return
	}
	offset := len(data)

	if err := deps.Store.UpdateTime(context.Background(), rowID, offset); err != nil {
		slog.Error("dialog: recording final sample count failed", "id", call.ID, "error", err)
	}

	if offset == 0 {
		return
	}

	go notifyAfterRecording(rowID, callerID, data, deps)
}

func notifyAfterRecording(rowID int64, callerID string, pcmu []byte, deps Deps) {
	ctx := context.Background()

	if deps.Transcriber != nil {
		text, err := deps.Transcriber.Transcribe(ctx, pcmu)
		if err != nil {
			slog.Warn("dialog: transcription failed", "id", rowID, "error", err)
		} else if text != "" {
			slog.Info("dialog: transcribed voicemail", "id", rowID, "text", text)
		}
	}

	if deps.Notifier != nil {
		msg := fmt.Sprintf("New voicemail from %s", callerID)
		if err := deps.Notifier.Notify(ctx, "", msg); err != nil {
			slog.Warn("dialog: SMS notification failed", "id", rowID, "error", err)
		}
	}
}

var statusReasons = map[sip.StatusCode]string{
	statusNotAcceptableHere:   "Not Acceptable Here",
	statusInternalServerError: "Server Error",
}

func respondError(session Session, code sip.StatusCode) {
	if err := session.Respond(code, statusReasons[code], nil); err != nil {
		slog.Debug("dialog: error response note", "error", err)
	}
}

func randomSSRC() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("dialog: generating SSRC: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
