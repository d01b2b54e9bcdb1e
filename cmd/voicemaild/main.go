// Command voicemaild runs the self-hosted voicemail answering service:
// SIP registration and call handling, RTP greeting/recording, SQLite
// storage, and the HTTP browsing surface, all in one process.
//
// Process wiring follows the teacher's cmd/signaling/main.go: load
// config, init the logger, construct the service, run it under a
// signal-driven shutdown context.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/phunks/voicemail/internal/banner"
	"github.com/phunks/voicemail/internal/config"
	"github.com/phunks/voicemail/internal/dialog"
	"github.com/phunks/voicemail/internal/httpapi"
	"github.com/phunks/voicemail/internal/httpapi/web"
	"github.com/phunks/voicemail/internal/logging"
	"github.com/phunks/voicemail/internal/notify"
	"github.com/phunks/voicemail/internal/sipsvc"
	"github.com/phunks/voicemail/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "voicemaild: loading configuration:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)

	st, err := store.Open(cfg.DataDir, 4)
	if err != nil {
		slog.Error("voicemaild: opening store failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := notify.NewNotifier(ctx, cfg)
	transcriber := notify.NewTranscriber(cfg)
	registry := dialog.NewRegistry()

	addr := net.JoinHostPort(cfg.ExternalIP, strconv.Itoa(cfg.Port))

	loop, err := sipsvc.New(sipsvc.Deps{
		ListenAddr: addr,
		ExternalIP: addr,
		SIPServer:  cfg.SIPServer,
		User:       cfg.User,
		Password:   cfg.Password,
		Expires:    3600,
		Dialog: dialog.Deps{
			LocalIP:      cfg.ExternalIP,
			RTPStartPort: cfg.RTPStartPort,
			Rec:          cfg.Rec,
			Echo:         cfg.Echo,
			Store:        st,
			Registry:     registry,
			Transcriber:  transcriber,
			Notifier:     notifier,
		},
	})
	if err != nil {
		slog.Error("voicemaild: building signalling loop failed", "error", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(st, http.FS(web.FS())),
	}

	banner.Print("voicemaild", []banner.ConfigLine{
		{Label: "sip addr", Value: addr},
		{Label: "http addr", Value: cfg.HTTPAddr},
		{Label: "sip server", Value: cfg.SIPServer},
		{Label: "rec", Value: strconv.FormatBool(cfg.Rec)},
		{Label: "echo", Value: strconv.FormatBool(cfg.Echo)},
		{Label: "data dir", Value: cfg.DataDir},
	})

	slog.Info("voicemaild: starting",
		"sip_addr", addr,
		"http_addr", cfg.HTTPAddr,
		"rec", cfg.Rec,
		"echo", cfg.Echo,
		"sip_server", cfg.SIPServer,
	)

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("voicemaild: http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("voicemaild: received signal, shutting down", "signal", sig)
		cancel()
		httpSrv.Shutdown(context.Background())
		<-loopErr

	case err := <-loopErr:
		cancel()
		httpSrv.Shutdown(context.Background())
		if err != nil {
			slog.Error("voicemaild: signalling loop exited", "error", err)
			os.Exit(1)
		}
		slog.Info("voicemaild: signalling loop exited cleanly")
	}
}
