package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"framecast/internal/frame"
	"framecast/internal/hub"
	"framecast/internal/pipeline"
	"framecast/internal/platform/config"
	"framecast/internal/platform/logger"
	"framecast/internal/platform/metrics"
	"framecast/internal/relay"
	"framecast/internal/render"
	"framecast/internal/server"
	"framecast/internal/source"
	"framecast/internal/stats"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = config.Load()

	port := config.GetEnv("PORT", server.DefaultPort)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	welcome := config.GetEnv("WELCOME_MESSAGE", hub.DefaultWelcome)
	quality := config.GetEnvInt("JPEG_QUALITY", frame.DefaultQuality)
	statsInterval := config.GetEnvInt("STATS_INTERVAL", stats.DefaultInterval)
	writeTimeout := config.GetEnvDuration("WRITE_TIMEOUT", 2*time.Second)
	outboxSize := config.GetEnvInt("OUTBOX_SIZE", 4)
	pingInterval := config.GetEnvDuration("PING_INTERVAL", 20*time.Second)
	readLimit := config.GetEnvInt("READ_LIMIT", 4096)
	frameWidth := config.GetEnvInt("FRAME_WIDTH", 640)
	frameHeight := config.GetEnvInt("FRAME_HEIGHT", 480)
	frameRate := config.GetEnvInt("FRAME_RATE", 30)
	processingMode := config.GetEnv("PROCESSING_MODE", "edges")
	renderWidth := config.GetEnvInt("RENDER_WIDTH", 320)
	renderHeight := config.GetEnvInt("RENDER_HEIGHT", 240)
	renderRate := config.GetEnvInt("RENDER_RATE", 60)
	shutdownTimeout := config.GetEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	mode, err := source.ParseMode(processingMode)
	if err != nil {
		return err
	}

	listener := hub.ListenerFuncs{
		Started: func() { log.Info("viewer server started") },
		Stopped: func() { log.Info("viewer server stopped") },
		ClientConnected: func(count int) {
			log.Info("viewer connected", slog.Int("clients", count))
		},
		ClientDisconnected: func(count int) {
			log.Info("viewer disconnected", slog.Int("clients", count))
		},
		Error: func(msg string) { log.Warn("viewer server error", slog.String("error", msg)) },
	}

	h, err := hub.New(frame.NewJPEGCodec(quality), hub.Config{
		WelcomeMessage: welcome,
		WriteTimeout:   writeTimeout,
		OutboxSize:     outboxSize,
		PingInterval:   pingInterval,
		ReadLimit:      int64(readLimit),
	}, log, met, listener)
	if err != nil {
		return err
	}

	rel := relay.New()
	if err := met.RegisterRelayOverwrites(func() uint64 { return rel.Stats().Overwritten }); err != nil {
		return err
	}
	agg := stats.New(stats.WithInterval(statsInterval))
	src := source.NewSynthetic(source.Config{
		Width:     frameWidth,
		Height:    frameHeight,
		FrameRate: frameRate,
		Mode:      mode,
	})
	producer := pipeline.NewProducer(src, h, rel, agg, log, met)
	api := pipeline.NewHandler(producer, h, rel, src, log)

	surface := render.NewMemorySurface()
	renderLoop, err := render.NewLoop(rel, surface, render.Config{
		Width:    renderWidth,
		Height:   renderHeight,
		Interval: time.Second / time.Duration(max(renderRate, 1)),
	}, log, met)
	if err != nil {
		return err
	}

	srv := server.New(h, server.Config{
		Addr:            ":" + port,
		ShutdownTimeout: shutdownTimeout,
		Routes: func(r chi.Router) {
			api.Routes(r)
			r.Get("/snapshot.jpg", surface.ServeSnapshot)
		},
		UpdateGauges: func() {
			met.SetConnectedClients(h.ClientCount())
		},
	}, log, met)

	if err := srv.Start(); err != nil {
		return err
	}

	log.Info("framecast starting",
		"port", port,
		"frame_size", fmt.Sprintf("%dx%d", frameWidth, frameHeight),
		"frame_rate", frameRate,
		"mode", mode.String(),
		"log_level", logLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return producer.Run(gctx) })
	g.Go(func() error { return renderLoop.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, closing viewers")
		return nil
	})

	runErr := g.Wait()
	if err := srv.Stop(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped")
	return runErr
}
