package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/resilient-ws/internal/config"
	"github.com/rickgao/resilient-ws/internal/connection"
	"github.com/rickgao/resilient-ws/internal/metrics"
	"github.com/rickgao/resilient-ws/internal/outbox"
	"github.com/rickgao/resilient-ws/internal/version"
)

const shutdownTimeout = 5 * time.Second

// connectFlags are command-line overrides for the config file.
type connectFlags struct {
	configPath   string
	maxRetries   int
	retryDelay   time.Duration
	pingInterval time.Duration
	logLevel     string
	metricsAddr  string
}

func connectCmd() *cobra.Command {
	var fl connectFlags

	cmd := &cobra.Command{
		Use:   "connect [url]",
		Short: "Connect and relay stdin/stdout over the WebSocket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(fl, args, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := newLogger(cfg.Log, cmd.ErrOrStderr())
			return run(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fl.configPath, "config", "c", "", "path to YAML config file")
	f.IntVar(&fl.maxRetries, "max-retries", config.DefaultMaxRetryCount, "reconnect attempts after a disconnect")
	f.DurationVar(&fl.retryDelay, "retry-delay", config.DefaultRetryDelay, "fixed delay before each reconnect")
	f.DurationVar(&fl.pingInterval, "ping-interval", config.DefaultPingInterval, "heartbeat interval while connected")
	f.StringVar(&fl.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&fl.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// buildConfig loads the config file (if any), applies flag overrides and
// validates the result.
func buildConfig(fl connectFlags, args []string, changed func(string) bool) (*config.ClientConfig, error) {
	cfg := &config.ClientConfig{}
	if fl.configPath != "" {
		loaded, err := config.Load(fl.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(args) == 1 {
		cfg.Client.URL = args[0]
	}
	if changed("max-retries") {
		n := fl.maxRetries
		cfg.Client.MaxRetryCount = &n
	}
	if changed("retry-delay") {
		cfg.Client.RetryDelay = fl.retryDelay
	}
	if changed("ping-interval") {
		cfg.Client.PingInterval = fl.pingInterval
	}
	if fl.logLevel != "" {
		cfg.Log.Level = fl.logLevel
	}
	if fl.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = fl.metricsAddr
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// run relays between the connection and in/out until ctx is cancelled or
// in reaches EOF.
func run(ctx context.Context, cfg *config.ClientConfig, in io.Reader, out io.Writer, logger *slog.Logger) error {
	logger.Info("starting wsclient",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Client.URL,
	)

	opts := cfg.Client.ManagerOptions()
	opts.Logger = logger
	opts.Transport = connection.NewWebSocketTransport(cfg.Client.WebSocketConfig(logger))

	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.NewConnection(metrics.Config{Registry: registry})
	}

	mgr, err := connection.New(cfg.Client.URL, opts)
	if err != nil {
		return fmt.Errorf("create connection manager: %w", err)
	}
	defer mgr.Release()

	box := outbox.New(cfg.Outbox.InitialCapacity, cfg.Outbox.Limit)
	closed := make(chan struct{}, 1)
	flushed := make(chan struct{}, 1)

	var outMu sync.Mutex
	mgr.OnMessage(func(msg string) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintln(out, msg)
	})
	mgr.OnError(func(err error) {
		logger.Warn("connection error", "error", err)
	})
	mgr.OnClose(func() {
		select {
		case closed <- struct{}{}:
		default:
		}
	})
	mgr.OnStateChange(func(from, to connection.State) {
		if to != connection.StateOpen {
			return
		}
		if n, err := box.Flush(mgr); err != nil {
			logger.Warn("outbox flush stopped", "sent", n, "pending", box.Len(), "error", err)
		} else if n > 0 {
			logger.Info("outbox flushed", "sent", n)
		}
		select {
		case flushed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		g.Go(func() error {
			logger.Info("starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	lines := scanLines(ctx, in)
	g.Go(func() error {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					logger.Info("input closed", "pending", box.Len())
					waitDrained(ctx, box, flushed, logger)
					return nil
				}
				queued, err := box.SendOrQueue(mgr, line)
				if err != nil {
					logger.Warn("send failed", "error", err)
					continue
				}
				if queued {
					logger.Debug("connection not open, message queued",
						"state", mgr.State(),
						"pending", box.Len(),
					)
				}
			}
		}
	})

	err = g.Wait()
	shutdown(mgr, closed, logger)

	stats := mgr.Stats()
	logger.Info("wsclient stopped",
		"attempts", stats.Attempts,
		"messages", stats.MessagesReceived,
		"heartbeats", stats.HeartbeatsSent,
		"unsent", box.Len(),
	)
	return err
}

// waitDrained blocks until the outbox is empty, ctx is done or
// shutdownTimeout elapses. Queued messages go out when the connection
// opens, so input that ends early is not lost.
func waitDrained(ctx context.Context, box *outbox.Outbox, flushed <-chan struct{}, logger *slog.Logger) {
	timeout := time.NewTimer(shutdownTimeout)
	defer timeout.Stop()

	for box.Len() > 0 {
		select {
		case <-flushed:
		case <-ctx.Done():
			return
		case <-timeout.C:
			logger.Warn("giving up on unsent messages", "pending", box.Len())
			return
		}
	}
}

// shutdown closes an open connection and waits for the transport to
// confirm, bounded by shutdownTimeout.
func shutdown(mgr *connection.Manager, closed <-chan struct{}, logger *slog.Logger) {
	if mgr.State() != connection.StateOpen {
		return
	}

	// Discard a notification left over from an earlier disconnect.
	select {
	case <-closed:
	default:
	}
	mgr.Close()

	select {
	case <-closed:
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout, forcing close")
	}
}

// scanLines reads in line by line on its own goroutine. The channel is
// closed at EOF.
func scanLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
