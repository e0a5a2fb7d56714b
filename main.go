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
	"zone-router/config"
	"zone-router/handler"
	"zone-router/logging"
	"zone-router/planner"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "zonerouter",
	Short: "Zone-weighted route planner",
	Long: `zonerouter computes road routes that trade travel time against exposure
to polygonal avoidance zones (for example pollution areas), one route per
named cost profile.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the route planning HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to the TOML config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup 读取配置并初始化日志
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// loadPlanner 创建数据源并加载第一份快照, 加载失败时服务不启动
func loadPlanner(ctx context.Context, cfg config.Config, logger *slog.Logger) (*planner.Planner, *planner.Loader, error) {
	loader, err := planner.NewLoader(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	snap, err := loader.Load(ctx)
	if err != nil {
		loader.Close()
		return nil, nil, err
	}
	p := planner.New(snap, planner.Options{
		Timeout:          cfg.Planner.Timeout,
		SnapRadiusMeters: cfg.Planner.SnapRadiusMeters,
		Workers:          cfg.Planner.Workers,
	}, logger)
	return p, loader, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, loader, err := loadPlanner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer loader.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler.NewServer(p, loader, cfg, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Server.Listen), slog.Bool("auth", cfg.Auth.Enabled()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
