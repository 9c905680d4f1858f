// cmd/update-node/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gammanik/buildsync/internal/api"
	"github.com/Gammanik/buildsync/internal/config"
	"github.com/Gammanik/buildsync/internal/scheduler"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "update-node",
		Short:        "Serve build artifacts to peers and pull missing builds from upstream",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newSyncCommand(&configPath))
	return cmd
}

func newSyncCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync cycle against the upstream and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			if len(cfg.Upstreams()) == 0 {
				return errors.New("no upstream configured")
			}

			n, err := newNode(cfg)
			if err != nil {
				return err
			}
			defer n.Close()

			report, err := n.syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "upstream %s: %d stale, %d installed, %d failed\n",
				report.Upstream, len(report.Stale), len(report.Installed), len(report.Failed))
			if len(report.Failed) > 0 {
				return fmt.Errorf("failed to fetch %v", report.Failed)
			}
			return nil
		},
	}
}

func loadConfig(cmd *cobra.Command, path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ApplyFlags(cmd.Flags(), &cfg); err != nil {
		return config.Config{}, err
	}

	// Используем ID из аргумента, переменной окружения NODE_ID или имени хоста
	if cfg.NodeID == "" {
		cfg.NodeID = os.Getenv("NODE_ID")
	}
	if cfg.NodeID == "" {
		cfg.NodeID, _ = os.Hostname()
	}

	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := newNode(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	handler := &api.NodeHandler{
		Catalog:  n.catalog,
		Store:    n.store,
		Password: cfg.Password,
		Metrics:  n.metrics,
		Logger:   n.logger,
	}

	// Синхронизация включена, только если задан вышестоящий узел
	schedDone := make(chan struct{})
	if len(cfg.Upstreams()) == 0 {
		close(schedDone)
	} else {
		sched, err := scheduler.New(func(ctx context.Context) error {
			_, err := n.syncer.Sync(ctx)
			return err
		}, cfg.SyncInterval, cfg.SyncCron, n.logger)
		if err != nil {
			return err
		}
		handler.Trigger = sched.Trigger
		go func() {
			defer close(schedDone)
			sched.Run(ctx)
		}()
		n.logger.Printf("Syncing from %v", cfg.Upstreams())
	}

	// Настраиваем и запускаем HTTP сервер
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	servers := []*http.Server{server}
	if cfg.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr: cfg.MetricsAddr,
			Handler: api.NewAdminRouter(&api.AdminHandler{
				NodeID:   cfg.NodeID,
				Catalog:  n.catalog,
				Journal:  n.journal,
				Gatherer: n.registry,
				Logger:   n.logger,
			}),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		})
	}

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	n.logger.Printf("Update node %s starting on %s with %d components", cfg.NodeID, server.Addr, len(n.catalog.Versions()))

	select {
	case <-ctx.Done():
	case err := <-errs:
		stop()
		shutdown(servers, n.logger)
		<-schedDone
		return err
	}

	shutdown(servers, n.logger)
	// Журнал закрывается только после завершения текущего цикла
	<-schedDone
	return nil
}

func shutdown(servers []*http.Server, logger *log.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Failed to shut down %s: %v", srv.Addr, err)
		}
	}
}
