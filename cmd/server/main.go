package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/auth"
	"github.com/roomcast/roomcast/internal/browser"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/hub"
	"github.com/roomcast/roomcast/internal/registry"
	"github.com/roomcast/roomcast/internal/store"
	"github.com/roomcast/roomcast/internal/stream"
	"github.com/roomcast/roomcast/internal/ws"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	driver := browser.NewPlaywrightDriver()
	if err := driver.Install(); err != nil {
		log.Warn().Err(err).Msg("playwright install failed, browser sessions will not start")
	}

	mem := store.NewMemory()
	verifier := auth.NewJWT(cfg.Secret)

	reg := registry.New()
	mgr := browser.NewManager(driver, cfg.ViewportWidth, cfg.ViewportHeight)
	deviceLock := browser.NewDeviceLock()
	streamer := stream.New(reg, mgr, deviceLock,
		func() browser.Capturer {
			return browser.NewFFmpegCapturer(cfg.AudioFormat, cfg.AudioDevice)
		},
		cfg.FrameInterval, cfg.AudioChunkSize)
	limiter := hub.NewChatRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
	h := hub.New(reg, mgr, streamer, mem, limiter)

	wsHandler := ws.NewHandler(verifier, mem, reg, h, cfg.ReadLimit)

	if cfg.Mode == "debug" {
		seedDemo(mem, verifier)
	}

	r := ws.SetupRouter(ctx, cfg, wsHandler)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("roomcast server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	h.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// seedDemo provisions a host, a guest and one room so a debug build is
// usable without the external account/room API.
func seedDemo(mem *store.Memory, verifier *auth.JWT) {
	host := mem.AddUser("host")
	guest := mem.AddUser("guest")
	room := mem.CreateRoom(host.ID, "demo room")
	mem.AddParticipant(room.Code, guest.ID)

	hostToken, _ := verifier.Issue(host.ID, 24*time.Hour)
	guestToken, _ := verifier.Issue(guest.ID, 24*time.Hour)
	log.Info().Str("room", string(room.Code)).Msg("seeded demo room")
	log.Info().Str("host_token", hostToken).Str("guest_token", guestToken).Msg("demo tokens")
}
