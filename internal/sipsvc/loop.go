// Package sipsvc implements the signalling loop (C6): the four
// concurrent tasks that keep the process registered with an upstream
// SIP server and route inbound dialogs to the dialog handler (C5).
//
// The shape follows the pack's emiago/sipgo examples directly:
// example/register/client for the REGISTER/digest-auth exchange, and
// dialog_server.go's DialogServer for the UAS side. None of those
// examples run the two halves in one process racing each other, so the
// task-racing Run loop below is this package's own contribution.
package sipsvc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"

	"github.com/phunks/voicemail/internal/dialog"
)

// minRegisterInterval is the floor registerLoop clamps the registrar's
// granted Expires to, per SPEC_FULL.md §4.1 ("sleeps max(expires, 50)
// seconds"), guarding against a registrar granting an unreasonably short
// lease that would otherwise hammer it with re-REGISTERs.
const minRegisterInterval = 50

// Deps configures the loop: where to listen, who to register as, and
// the dialog handler's own dependencies.
type Deps struct {
	ListenAddr string // udp host:port this process listens on, e.g. "0.0.0.0:5060"
	ExternalIP string // host:port advertised in Contact/Via
	SIPServer  string // "sip:host:port" of the upstream registrar; "" disables registration
	User       string
	Password   string
	Expires    int // registration lifetime in seconds

	Dialog dialog.Deps
}

// incomingRequest is what an OnRequest callback hands to the
// transaction pump: the raw request/transaction pair, routed to either
// an existing dialog or a fresh one.
type incomingRequest struct {
	req *sip.Request
	tx  sip.ServerTransaction
}

// Loop owns the UA/server/client/dialog-server quartet and the two
// internal channels that connect the transaction pump to the dialog
// event pump.
type Loop struct {
	deps Deps

	ua        *sipgo.UserAgent
	srv       *sipgo.Server
	client    *sipgo.Client
	dialogSrv *sipgo.DialogServer
	registry  *dialog.Registry

	incoming chan incomingRequest
	calling  chan dialog.CallingEvent
}

// New builds the loop's SIP stack and wires its routes, but does not
// start listening; call Run for that.
func New(deps Deps) (*Loop, error) {
	ua, err := sipgo.NewUA(sipgo.WithUserAgent("voicemaild"))
	if err != nil {
		return nil, fmt.Errorf("sipsvc: setting up user agent: %w", err)
	}

	srv, err := sipgo.NewServer(ua)
	if err != nil {
		return nil, fmt.Errorf("sipsvc: setting up server: %w", err)
	}

	client, err := sipgo.NewClient(ua, sipgo.WithClientAddr(deps.ExternalIP))
	if err != nil {
		return nil, fmt.Errorf("sipsvc: setting up client: %w", err)
	}

	var contactURI sip.Uri
	if err := sip.ParseUri("sip:"+deps.User+"@"+deps.ExternalIP, &contactURI); err != nil {
		return nil, fmt.Errorf("sipsvc: building contact header: %w", err)
	}
	contact := sip.ContactHeader{Address: contactURI}

	dialogSrv := sipgo.NewDialogServer(client, contact)

	l := &Loop{
		deps:      deps,
		ua:        ua,
		srv:       srv,
		client:    client,
		dialogSrv: dialogSrv,
		registry:  deps.Dialog.Registry,
		incoming:  make(chan incomingRequest, 32),
		calling:   make(chan dialog.CallingEvent, 8),
	}
	l.setupRoutes()
	return l, nil
}

func (l *Loop) setupRoutes() {
	l.srv.OnRequest(sip.INVITE, l.onRequest)
	l.srv.OnRequest(sip.ACK, l.onRequest)
	l.srv.OnRequest(sip.BYE, l.onRequest)
	l.srv.OnNoRoute(l.onNoRoute)
}

// onRequest forwards every INVITE/ACK/BYE to the transaction pump
// without blocking the server's own dispatch goroutine.
func (l *Loop) onRequest(req *sip.Request, tx sip.ServerTransaction) {
	select {
	case l.incoming <- incomingRequest{req: req, tx: tx}:
	default:
		slog.Warn("sipsvc: transaction pump backlog full, dropping request", "method", req.Method.String())
	}
}

// onNoRoute answers any method this process does not otherwise handle
// with a bare 200 OK, per SPEC_FULL.md §4.1.
func (l *Loop) onNoRoute(req *sip.Request, tx sip.ServerTransaction) {
	res := sip.NewResponseFromRequest(req, 200, "OK", nil)
	if err := tx.Respond(res); err != nil {
		slog.Debug("sipsvc: no-route response failed", "error", err)
	}
}

// Run starts all four signalling-loop tasks and blocks until the first
// one finishes, for whatever reason — including a clean nil return.
// Every other task is then cancelled via ctx and Run returns the first
// task's result.
//
// golang.org/x/sync/errgroup is not used here: errgroup.WithContext
// only cancels the group when a task returns a non-nil error, but the
// registration task below returns nil when it parks on cancellation
// with no SIP server configured, and that nil return must still end
// the loop.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)

	go func() { errCh <- l.serveEndpoint(ctx) }()
	go func() { errCh <- l.registerLoop(ctx) }()
	go func() { errCh <- l.runTransactionPump(ctx) }()
	go func() { errCh <- l.runDialogEventPump(ctx) }()

	err := <-errCh
	cancel()
	return err
}

func (l *Loop) serveEndpoint(ctx context.Context) error {
	if err := l.srv.ListenAndServe(ctx, "udp", l.deps.ListenAddr); err != nil {
		return fmt.Errorf("sipsvc: endpoint serve: %w", err)
	}
	return nil
}

// runTransactionPump routes every request the server hands it: ACK and
// BYE go straight to the dialog server, a fresh INVITE is accepted into
// a dialog and handed to the dialog event pump as a Calling event.
func (l *Loop) runTransactionPump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-l.incoming:
			l.routeOne(ctx, in.req, in.tx)
		}
	}
}

func (l *Loop) routeOne(ctx context.Context, req *sip.Request, tx sip.ServerTransaction) {
	switch req.Method {
	case sip.ACK:
		if err := l.dialogSrv.ReadAck(req, tx); err != nil {
			slog.Debug("sipsvc: ACK outside known dialog", "error", err)
		}

	case sip.BYE:
		if err := l.dialogSrv.ReadBye(req, tx); err != nil {
			slog.Debug("sipsvc: BYE outside known dialog", "error", err)
			return
		}
		if id, err := sip.UASReadRequestDialogID(req); err == nil {
			if call, ok := l.registry.Load(id); ok {
				call.Cancel()
			}
		}

	case sip.INVITE:
		session, err := l.dialogSrv.ReadInvite(req, tx)
		if err != nil {
			slog.Error("sipsvc: accepting invite failed", "error", err)
			res := sip.NewResponseFromRequest(req, 500, "Server Error", nil)
			if err := tx.Respond(res); err != nil {
				slog.Debug("sipsvc: invite-failure response failed", "error", err)
			}
			return
		}

		fromStr := ""
		if from, ok := req.From(); ok && from != nil {
			fromStr = from.Value()
		}

		ev := dialog.CallingEvent{
			ID:      session.ID,
			From:    fromStr,
			Invite:  req,
			Session: session,
		}

		select {
		case l.calling <- ev:
		case <-ctx.Done():
		}
	}
}

// runDialogEventPump is the sole consumer of Calling events, which
// keeps per-dialog ordering: one goroutine, one channel, requests
// handled in arrival order.
func (l *Loop) runDialogEventPump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.calling:
			dialog.HandleCalling(ctx, ev, l.deps.Dialog)
		}
	}
}

// registerLoop sends an initial REGISTER and re-registers for as long as
// ctx is alive, sleeping between cycles on whatever Expires the registrar
// granted back in its 200 OK (falling back to the requested value if the
// response omits one), clamped to minRegisterInterval. With no SIPServer
// configured it parks on ctx.Done and returns nil — a legitimate "done"
// signal the race in Run must still observe.
func (l *Loop) registerLoop(ctx context.Context) error {
	if l.deps.SIPServer == "" {
		<-ctx.Done()
		return nil
	}

	requested := l.deps.Expires
	if requested <= 0 {
		requested = 3600
	}

	for {
		granted, err := l.registerOnce(ctx, requested)
		if err != nil {
			return fmt.Errorf("sipsvc: registration: %w", err)
		}

		if granted < minRegisterInterval {
			granted = minRegisterInterval
		}

		wait := time.Duration(granted) * time.Second
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// registerOnce sends one REGISTER cycle and returns the Expires the
// registrar granted in its 200 OK, read from the response's own Expires
// header or, failing that, the granted Contact's expires param. It falls
// back to requested only if the response carries neither.
func (l *Loop) registerOnce(ctx context.Context, requested int) (int, error) {
	recipient := sip.Uri{}
	if err := sip.ParseUri(l.deps.SIPServer, &recipient); err != nil {
		return 0, fmt.Errorf("parsing SIP server URI: %w", err)
	}

	req := sip.NewRequest(sip.REGISTER, recipient)
	req.AppendHeader(&sip.ContactHeader{
		Address: sip.Uri{User: l.deps.User, Host: l.deps.ExternalIP},
	})
	expiresHdr := sip.Expires(uint32(requested))
	req.AppendHeader(&expiresHdr)
	req.SetTransport("UDP")

	res, err := l.client.Do(ctx, req.Clone())
	if err != nil {
		return 0, fmt.Errorf("sending REGISTER: %w", err)
	}

	if res.StatusCode == int(sip.StatusUnauthorized) || res.StatusCode == int(sip.StatusProxyAuthRequired) {
		res, err = l.client.DoDigestAuth(ctx, req, res, sipgo.DigestAuth{
			Username: l.deps.User,
			Password: l.deps.Password,
		})
		if err != nil {
			return 0, fmt.Errorf("sending REGISTER with digest auth: %w", err)
		}
	}

	if res.StatusCode != 200 {
		return 0, fmt.Errorf("registrar rejected REGISTER: %d %s", res.StatusCode, res.Reason)
	}

	return grantedExpires(res, requested), nil
}

// grantedExpires reads the registrar's granted lease off a 200 OK: the
// response's own Expires header, or its Contact header's expires param,
// falling back to requested if the response carries neither.
func grantedExpires(res *sip.Response, requested int) int {
	if h := res.GetHeader("Expires"); h != nil {
		if n, err := strconv.Atoi(h.Value()); err == nil {
			return n
		}
	}
	if h := res.GetHeader("Contact"); h != nil {
		if contact, ok := h.(*sip.ContactHeader); ok {
			if v, ok := contact.Params.Get("expires"); ok {
				if n, err := strconv.Atoi(v); err == nil {
					return n
				}
			}
		}
	}
	return requested
}
