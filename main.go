// GoPotluck is a real-time collaborative session hub: small groups share an
// ingredient list, a blacklist, a free-form context, and a set of voted-on
// recipes over persistent WebSocket connections, with one host per session
// holding elevated privileges.
//
// Startup sequence:
//  1. Load configuration (JSON file or defaults).
//  2. Initialise the structured logger and metrics.
//  3. Create the session store and the hub.
//  4. Start the worker pool and the TTL reaper.
//  5. Start the dashboard HTTP server (optional).
//  6. Serve the WebSocket endpoint.
//  7. Block until SIGINT or SIGTERM, then perform a clean shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firasghr/GoPotluck/config"
	"github.com/firasghr/GoPotluck/dashboard"
	"github.com/firasghr/GoPotluck/hub"
	"github.com/firasghr/GoPotluck/logger"
	"github.com/firasghr/GoPotluck/metrics"
	"github.com/firasghr/GoPotluck/reaper"
	"github.com/firasghr/GoPotluck/session"
	"github.com/firasghr/GoPotluck/worker"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional; uses defaults if omitted)")
	logLevel := flag.String("log-level", "info", "Minimum log level: debug, info, warn, error")
	flag.Parse()

	log := logger.New(logger.ParseLevel(*logLevel))
	log.Info("GoPotluck hub starting up")

	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			log.Error("failed to load config", "path", *configFile, "err", err)
			os.Exit(1)
		}
		cfg = loaded.WithDefaults()
		log.Info("configuration loaded", "path", *configFile)
	} else {
		cfg = config.DefaultConfig()
		log.Info("using default configuration")
	}

	m := metrics.New()
	store := session.NewStore(cfg.SessionTTL)
	h := hub.New(cfg, log, store, m)

	pool := worker.New(cfg.ReaperWorkers)
	rp := reaper.New(store, pool, cfg.ReapInterval, h.NotifyExpired, m, log)
	rp.Start()
	log.Info("reaper started", "interval", cfg.ReapInterval, "ttl", cfg.SessionTTL)

	if cfg.DashboardAddr != "" {
		dash := dashboard.New(m, store, cfg, log)
		go func() {
			if err := dash.ListenAndServe(cfg.DashboardAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("dashboard server failed", "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.WSPath, h.ServeWS)
	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: 0, // connections are long-lived; deadlines are per-frame
	}

	go func() {
		log.Info("hub listening", "addr", cfg.ListenAddr, "path", cfg.WSPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("hub server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	rp.Stop()
	pool.Stop()
	h.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("server shutdown", "err", err)
	}
	log.Info("goodbye")
}
