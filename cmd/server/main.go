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

	"github.com/DoyleJ11/radio-bridge/internal/config"
	"github.com/DoyleJ11/radio-bridge/internal/heartbeat"
	"github.com/DoyleJ11/radio-bridge/internal/httpapi"
	"github.com/DoyleJ11/radio-bridge/internal/hub"
	"github.com/DoyleJ11/radio-bridge/internal/listener"
	"github.com/DoyleJ11/radio-bridge/internal/logging"
	"github.com/DoyleJ11/radio-bridge/internal/portfile"
	"github.com/DoyleJ11/radio-bridge/internal/session"
	"github.com/DoyleJ11/radio-bridge/internal/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flags struct {
	configPath string
	envFiles   []string
	port       int
	logLevel   string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "radio-bridge",
		Short:         "Local control bridge between the game and the voice client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), f)
			if err != nil {
				fmt.Fprintln(os.Stderr, "radio-bridge:", err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", []string{".env"}, "Env files to load; earlier files win")
	cmd.Flags().IntVar(&f.port, "port", 0, "Override the preferred port")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Override the log level")
	return cmd
}

func run(parent context.Context, f flags) error {
	if err := config.LoadEnvFiles(f.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.port > 0 {
		cfg.PreferredPort = f.port
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, logger)
	sess := session.NewSession(ctx, h, session.Options{Logger: logger})
	mon := heartbeat.NewMonitor(sess, heartbeat.Options{
		Interval: cfg.Heartbeat.Interval,
		Timeout:  cfg.Heartbeat.Timeout,
		Logger:   logger,
	}).Start(ctx)

	surface := ws.Handler(sess, h, ws.Options{Secret: cfg.SharedSecret, Logger: logger})

	// Build the router *with* the session injected
	handler := httpapi.SetupRoutes(sess, surface, logger)

	ln, port, err := listener.Listen(cfg.Host, cfg.PreferredPort, cfg.PortProbeLimit)
	if err != nil {
		mon.Stop()
		return err
	}
	desc := portfile.Describe(cfg.Host, port)
	if err := portfile.Write(cfg.PortFile, desc); err != nil {
		ln.Close()
		mon.Stop()
		return err
	}
	logger.Info("listening", zap.String("url", desc.URL), zap.String("port_file", cfg.PortFile))

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("http shutdown", zap.Error(shutdownErr))
	}
	mon.Stop()
	stop() // session and hub exit with ctx
	return err
}
