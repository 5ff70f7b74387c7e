package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tradecopy/relayd/internal/appconfig"
	"github.com/tradecopy/relayd/internal/copyengine"
	"github.com/tradecopy/relayd/internal/handler"
	"github.com/tradecopy/relayd/internal/httpapi"
	"github.com/tradecopy/relayd/internal/ingest"
	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/publisher"
	"github.com/tradecopy/relayd/internal/registry"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/sweeper"
	"github.com/tradecopy/relayd/internal/transport"
	"github.com/tradecopy/relayd/internal/updater"
	"github.com/tradecopy/relayd/pkg/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config-dir")
			env, _ := cmd.Flags().GetString("env")
			return runServe(dir, env)
		},
	}
}

func runServe(configDir, env string) error {
	cfg, err := appconfig.Load(configDir, env)
	if err != nil {
		return err
	}

	log := logging.New(&logging.Config{Level: cfg.Logging.Level})
	logging.SetDefault(log)

	st, err := store.New(store.Config{DataDir: cfg.Storage.DataDir})
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	reg := registry.New()

	pub := transport.NewPubServer(cfg.Pub.Addr, m)
	if err := pub.Start(); err != nil {
		return err
	}
	go pub.Run()

	pull := transport.NewPullServer(cfg.Pull.Addr, cfg.Pull.InboundBuffer,
		rate.Limit(cfg.Pull.AcceptRatePS), cfg.Pull.AcceptBurst)
	if err := pull.Start(); err != nil {
		return err
	}

	pubComponent := publisher.New(st, pub, m)

	hub := httpapi.NewHub()
	go hub.Run()

	u := updater.New(reg, st, pubComponent, hub, m)
	engine := copyengine.New(m)
	h := handler.New(reg, st, u, engine, pub, hub, m)

	ingestLoop := ingest.New(pull, h)
	ingestLoop.Start()

	sweep := sweeper.New(reg, st, u, sweeper.Config{
		Interval: cfg.Sweeper.Interval,
		Timeout:  cfg.Sweeper.HeartbeatTimeout,
	})
	sweep.Start()

	httpSrv := httpapi.New(reg, st, u, hub, m, cfg.HTTP.CORSOrigins)
	if err := httpSrv.Start(httpapi.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}); err != nil {
		return err
	}

	log.Info("relayd started", "pull", cfg.Pull.Addr, "pub", cfg.Pub.Addr, "http", cfg.HTTP.Addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")

	// Stop accepting HTTP requests first, then drain ingest, then flush
	// the PUB broadcast, then close the transports, then the store.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Stop(shutdownCtx); err != nil {
		log.Warn("http shutdown error", "err", err)
	}

	sweep.Stop()

	if err := pull.Stop(); err != nil {
		log.Warn("pull stop error", "err", err)
	}
	ingestLoop.Wait()

	if err := pub.Stop(); err != nil {
		log.Warn("pub stop error", "err", err)
	}

	return nil
}
