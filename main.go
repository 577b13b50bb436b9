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

	"pagebuilder/config"
	"pagebuilder/config/database"
	"pagebuilder/internal/catalog"
	"pagebuilder/internal/page/repository"
	"pagebuilder/pkg/logger"
	"pagebuilder/router"
	"pagebuilder/socket"
	"pagebuilder/store"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pagebuilder",
	Short: "Landing page builder backend",
	Long:  `Serves the live page editor over WebSocket, the page REST API and published pages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := database.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(db); err != nil {
			return err
		}
		logger.Sugar.Info("Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, renderCmd, importCmd, templatesCmd)
}

// setup loads the configuration and starts logging.
func setup() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	logger.Init(cfg.LogLevel)
	if !cfg.EnvFile {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	return cfg, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load templates %s: %w", path, err)
	}
	return cat, nil
}

func serve(ctx context.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cat, err := loadCatalog(cfg.TemplatesFile)
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := repository.NewPageRepository(db)
	hub := socket.NewHub(repo, cat)
	go hub.Run(ctx)
	saved := make(chan struct{})
	go func() {
		hub.SaveWorker(ctx, cfg.AutosaveInterval)
		close(saved)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Setup(router.Deps{DB: db, Repo: repo, Hub: hub, Catalog: cat, Config: cfg}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Sugar.Errorf("Server shutdown: %v", err)
		}
	}()

	logger.Sugar.Infof("Page builder listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-saved // last autosave flush
	logger.Sugar.Info("Server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
