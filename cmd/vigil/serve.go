package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/vigil/internal/archive"
	"github.com/tinytelemetry/vigil/internal/backup"
	"github.com/tinytelemetry/vigil/internal/httpserver"
	"github.com/tinytelemetry/vigil/internal/hub"
	"github.com/tinytelemetry/vigil/internal/promexport"
	"github.com/tinytelemetry/vigil/internal/session"
	"github.com/tinytelemetry/vigil/internal/socketrpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telemetry service",
	Long: `Run one dashboard session: ingest frame telemetry for the active streams,
sample system metrics, and serve both over HTTP, WebSocket and the Unix socket.

Examples:
  vigil serve
  vigil serve --config ./vigil.yml
  VIGIL_SEED=42 VIGIL_ARCHIVE_ENABLED=false vigil serve`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if socketPath != "" {
			cfg.SocketPath = socketPath
		}
		return runServer(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServer starts the session with every configured surface attached.
func runServer(cfg appConfig) error {
	logger, cleanupLogger, err := configureRuntimeLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer cleanupLogger()

	// Set up context and signal handling before anything starts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	exporter := promexport.New()
	feed := hub.New(logger.Named("hub"))
	defer feed.Close()

	opts := []session.Option{
		session.WithLogger(logger.Named("session")),
		session.WithObserver(exporter),
		session.WithObserver(feed),
	}

	var store *archive.Store
	if cfg.ArchiveEnabled {
		store, err = archive.NewStore(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize archive: %w", err)
		}
		defer store.Close()

		insertBuffer := archive.NewInsertBuffer(store, archive.InsertBufferConfig{
			BatchSize:     cfg.InsertBatchSize,
			FlushInterval: cfg.InsertFlushInterval,
			Logger:        logger.Named("archive"),
		})
		defer insertBuffer.Stop()
		opts = append(opts, session.WithObserver(insertBuffer))

		retentionCleaner := archive.NewRetentionCleaner(store, archive.RetentionConfig{
			Retention: cfg.retention(),
			Logger:    logger.Named("retention"),
		})
		if retentionCleaner != nil {
			defer retentionCleaner.Stop()
		}

		backupManager, err := backup.NewManager(ctx, store, backup.Config{
			Enabled:        cfg.BackupEnabled,
			Interval:       cfg.BackupInterval,
			LocalDir:       cfg.BackupLocalDir,
			KeepLast:       cfg.BackupKeepLast,
			BucketURL:      cfg.BackupBucketURL,
			S3Endpoint:     cfg.BackupS3Endpoint,
			S3Region:       cfg.BackupS3Region,
			S3AccessKey:    cfg.BackupS3AccessKey,
			S3SecretKey:    cfg.BackupS3SecretKey,
			S3SessionToken: cfg.BackupS3SessionToken,
			S3UseSSL:       cfg.BackupS3UseSSL,
		}, backup.WithLogger(logger.Named("backup")))
		if err != nil {
			return fmt.Errorf("failed to initialize backups: %w", err)
		}
		if backupManager != nil {
			defer backupManager.Stop()
		}
	}

	sessions := session.NewManager()
	sess, err := sessions.Create(session.Config{
		Name:           cfg.Session,
		Streams:        cfg.Streams,
		LogCapacity:    cfg.LogCapacity,
		IngestInterval: cfg.IngestInterval,
		SampleInterval: cfg.SampleInterval,
		StreamInterval: cfg.StreamInterval,
		FramesMode:     cfg.FramesMode,
		Seed:           cfg.Seed,
		AutoStart:      cfg.AutoStart,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	sess.SetMode(cfg.Mode)

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiOpts := []httpserver.Option{
			httpserver.WithHub(feed),
			httpserver.WithMetricsHandler(exporter.Handler()),
			httpserver.WithLogger(logger.Named("http")),
			httpserver.WithSessionName(sess.Name()),
		}
		if store != nil {
			apiOpts = append(apiOpts, httpserver.WithHistory(store))
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, sess, apiOpts...)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for the TUI and CLI commands.
	sockServer := socketrpc.NewServer(cfg.SocketPath, sess, logger.Named("socket"))
	socketOK := true
	if err := sockServer.Start(); err != nil {
		socketOK = false
		logger.Warn("failed to start socket server", zap.Error(err))
	} else {
		defer sockServer.Stop()
	}

	printStartupBanner(cfg, socketOK)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sessions.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server: errgroup exited with error", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete", zap.Int64("feed_dropped", feed.Dropped()))
	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}
