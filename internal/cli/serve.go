package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/logging"
	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/metrics"
	"github.com/lazypower/waypoint/internal/scene"
	"github.com/lazypower/waypoint/internal/server"
	"github.com/lazypower/waypoint/internal/session"
	"github.com/lazypower/waypoint/internal/spatial"
	"github.com/lazypower/waypoint/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := metrics.New("waypoint")
	persister := memory.NewPersister(db, logger, m)
	persister.SetTimeout(time.Duration(cfg.Persist.Timeout) * time.Second)

	tracker := spatial.NewTracker()
	graph := scene.NewGraph(tracker, scene.Viewport{
		Width:  cfg.Viewport.Width,
		Height: cfg.Viewport.Height,
		FOVY:   cfg.Viewport.FOVY(),
	})
	sess := session.New(session.Config{
		Tracker:               tracker,
		Persister:             persister,
		Renderer:              graph,
		HitTester:             graph,
		Logger:                logger,
		Metrics:               m,
		Standoff:              cfg.Placement.Standoff,
		RefuseWhenUnavailable: cfg.Placement.RefuseWhenUnavailable,
	})

	srv := server.New(server.Deps{
		DB:      db,
		Session: sess,
		Logger:  logger,
		Metrics: m,
		Version: VersionString(),
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("waypoint serving",
			zap.String("addr", addr),
			zap.String("db", dbPath),
			zap.String("version", VersionString()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-done:
		logger.Info("shutting down")
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	shutdownErr := httpServer.Shutdown(ctx)
	if err := sess.Close(ctx); err != nil {
		logger.Error("close session", zap.Error(err))
	}
	if err := persister.Close(ctx); err != nil {
		logger.Error("close persister", zap.Error(err), zap.Int("pending", persister.Pending()))
	}
	return shutdownErr
}
