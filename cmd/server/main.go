package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/convo/internal/adapters/http"
	"github.com/dkeye/convo/internal/adapters/presence"
	wssignal "github.com/dkeye/convo/internal/adapters/signal"
	"github.com/dkeye/convo/internal/app"
	"github.com/dkeye/convo/internal/app/orch"
	"github.com/dkeye/convo/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := presence.Open(cfg.Presence.Driver, cfg.Presence.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open presence store")
	}
	defer store.Close()

	reg := app.NewRegistry()
	out := app.NewBroadcaster(reg, app.PolicyByName(cfg.Backpressure))
	pres := app.NewPresence(reg, out, store)
	o := orch.New(reg, out, pres, app.NewGroupCalls(cfg.GroupMax))
	if cfg.DMRate.Limit > 0 {
		o.Limiter = wssignal.NewRateLimiter(cfg.DMRate.Limit, cfg.DMRate.Interval)
	}

	ctl := wssignal.NewSignalWSController(o, wssignal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		WriteTimeout: cfg.WriteTimeout,
		SendBuffer:   cfg.SendBuffer,
	})
	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Signal: ctl, Presence: store})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.Run(gctx) })
	g.Go(func() error { return pres.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("convo server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}
