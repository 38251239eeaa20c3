package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/pipewatch/task-health-monitor/pkg/api"
	_ "github.com/pipewatch/task-health-monitor/pkg/check/execprobe"
	_ "github.com/pipewatch/task-health-monitor/pkg/check/filefresh"
	_ "github.com/pipewatch/task-health-monitor/pkg/check/gputelemetry"
	_ "github.com/pipewatch/task-health-monitor/pkg/check/httpprobe"
	_ "github.com/pipewatch/task-health-monitor/pkg/check/trackerapi"
	"github.com/pipewatch/task-health-monitor/pkg/config"
	"github.com/pipewatch/task-health-monitor/pkg/metrics"
	"github.com/pipewatch/task-health-monitor/pkg/notify"
	"github.com/pipewatch/task-health-monitor/pkg/store"
	"github.com/pipewatch/task-health-monitor/pkg/task"
	"github.com/pipewatch/task-health-monitor/pkg/transport"
	"github.com/pipewatch/task-health-monitor/pkg/transport/telegram"
)

var (
	configPath string

	cmd = &cobra.Command{
		Use:   "taskhealthmonitor --config file",
		Short: "Task Health Monitor",
		RunE:  run,
	}
)

func init() {
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path of the configuration file")
	cmd.MarkFlagRequired("config")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		klog.ErrorS(err, "Monitor exited with error")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Secrets may live in a .env file next to the binary.
	_ = godotenv.Load()

	cfg, err := config.ParseFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			klog.ErrorS(err, "Failed to close store")
		}
	}()
	klog.InfoS("Store initialized", "driver", cfg.Storage.Driver)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	klog.InfoS("Registered tasks", "count", len(registry.Names()), "tasks", registry.Names())

	var sender transport.Sender
	var botClient *telegram.Client
	if cfg.Telegram.Token != "" {
		botClient = telegram.NewClient(cfg.Telegram.Token)
		sender = botClient
	} else {
		klog.InfoS("No Telegram token configured, notifications disabled")
	}

	engine := notify.New(registry, st, sender, cfg.Monitor)
	engine.Start()
	defer engine.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Port > 0 {
		m, err := metrics.NewServer(cfg.Metrics.Port)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		g.Go(func() error {
			return m.Run(gctx)
		})
	}

	if cfg.API.Addr != "" {
		srv := api.NewServer(registry, st, engine)
		g.Go(func() error {
			return srv.Run(gctx, cfg.API.Addr)
		})
	}

	if botClient != nil {
		bot := telegram.NewBot(botClient, registry, st, cfg.Telegram)
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildRegistry(cfg *config.Config) (*task.Registry, error) {
	registry := task.NewRegistry()
	for i := range cfg.Tasks {
		t, err := task.Build(&cfg.Tasks[i])
		if err != nil {
			return nil, fmt.Errorf("failed to build task %q: %w", cfg.Tasks[i].Name, err)
		}
		registry.Register(t)
	}
	return registry, nil
}
