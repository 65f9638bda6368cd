package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfdrelay/relay/internal/capturelink"
	"github.com/mfdrelay/relay/internal/config"
	"github.com/mfdrelay/relay/internal/controls"
	"github.com/mfdrelay/relay/internal/controlsws"
	"github.com/mfdrelay/relay/internal/dcsbios"
	"github.com/mfdrelay/relay/internal/display"
	"github.com/mfdrelay/relay/internal/httpserver"
	"github.com/mfdrelay/relay/internal/logging"
	"github.com/mfdrelay/relay/internal/mfdrtc"
	"github.com/mfdrelay/relay/internal/signalling"
	"github.com/mfdrelay/relay/internal/workerpool"
)

const (
	encodeWorkers  = 4
	encodeQueueCap = 16
	drainTimeout   = 5 * time.Second
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay: capture link, DCS-BIOS client, and HTTP/WebRTC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOutput := io.Writer(os.Stderr)
	if cfg.LogFile != "" {
		rotating, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer rotating.Close()
		logOutput = logging.TeeWriter(os.Stderr, rotating)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
	log := logging.L("main")

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defs, err := controls.Load(cfg.ControlRefDir)
	if err != nil {
		return fmt.Errorf("load control definitions: %w", err)
	}

	layout := display.NewSetupWatcher(display.DefaultLayout())
	registry := display.NewRegistry()
	registry.Reconcile(layout.Current())

	pool := workerpool.New(encodeWorkers, encodeQueueCap)

	captureSrv := capturelink.New(cfg.CaptureLinkAddr, layout, registry)
	dcsClient := dcsbios.New(cfg.DCSBIOSAddr, defs)
	rtcManager := mfdrtc.NewManager(registry, pool, cfg.STUNServers, cfg.EncoderBitrateBPS)

	mfdHandler := signalling.NewHandler(rtcManager)
	controlsHandler := controlsws.NewHandler(dcsClient)
	httpSrv := httpserver.New(cfg.HTTPAddr, cfg.CORSOpen, mfdHandler, controlsHandler)

	errCh := make(chan error, 3)
	go func() { errCh <- captureSrv.Serve(ctx) }()
	go func() { errCh <- dcsClient.Run(ctx) }()
	go func() { errCh <- httpSrv.Serve(ctx) }()

	log.Info("mfdrelay started", "version", version)

	select {
	case err := <-errCh:
		cancel()
		if err != nil {
			log.Error("component exited with error", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer stopCancel()
	pool.StopAccepting()
	pool.Drain(stopCtx)

	return nil
}
