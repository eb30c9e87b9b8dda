// Command opguardd serves a guarded record store over HTTP.
//
// Every request runs through the operation coordinator: the dependency is
// probed first, the store call runs under a per-route deadline and calls on
// the same record are serialized.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/jonwraymond/opguard/connguard"
	"github.com/jonwraymond/opguard/coordinator"
	"github.com/jonwraymond/opguard/internal/config"
	"github.com/jonwraymond/opguard/internal/server"
	"github.com/jonwraymond/opguard/observe"
)

var exampleUsage = strings.TrimSpace(`
  opguardd --listen :8080
  opguardd --probe http --probe-target http://db:8080/ping --workers 4
  opguardd --config $HOME/.opguard/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "opguardd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var cfgPath string

	root := &cobra.Command{
		Use:           "opguardd",
		Short:         "Serve a record store with connection guards and response-time budgets",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.opguard/config.toml)")
	root.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	root.Flags().StringVar(&cfg.ProbeKind, "probe", cfg.ProbeKind, "dependency probe: always, http, dial or session")
	root.Flags().StringVar(&cfg.ProbeTarget, "probe-target", cfg.ProbeTarget, "URL or host:port to probe")
	root.Flags().StringVar(&cfg.SessionToken, "session-token", cfg.SessionToken, "session JWT for the session probe")
	root.Flags().StringVar(&cfg.SessionKey, "session-key", cfg.SessionKey, "HMAC key verifying the session JWT")
	root.Flags().DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "upper bound for a single probe")
	root.Flags().DurationVar(&cfg.ReconnectTimeout, "reconnect-timeout", cfg.ReconnectTimeout, "upper bound for a reconnect attempt")
	root.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "operations that may run at once")
	root.Flags().DurationVar(&cfg.DefaultDeadline, "default-deadline", cfg.DefaultDeadline, "deadline for calls without one")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for in-flight requests")
	root.Flags().StringVar(&cfg.ServiceName, "service-name", cfg.ServiceName, "service name for telemetry")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	root.Flags().StringVar(&cfg.TracingExporter, "tracing-exporter", cfg.TracingExporter, "otlp, stdout or none")
	root.Flags().StringVar(&cfg.MetricsExporter, "metrics-exporter", cfg.MetricsExporter, "prometheus, otlp, stdout or none")

	return root
}

// loadConfig applies the config file, then OPGUARD_* variables, keeping
// any flag the user set explicitly.
func loadConfig(cmd *cobra.Command, cfg *config.Config, path string) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if path == "" {
		path = config.DefaultPath()
	}
	if path != "" && config.FileExists(path) {
		fc, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFile(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := config.ApplyEnv(cfg, changed); err != nil {
		return err
	}
	if err := cfg.Expand(); err != nil {
		return err
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	registry := prometheus.NewRegistry()

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName:     cfg.ServiceName,
		Version:         getVersion(),
		TracingExporter: cfg.TracingExporter,
		SampleRatio:     1,
		MetricsExporter: cfg.MetricsExporter,
		LogLevel:        cfg.LogLevel,
		Registerer:      registry,
	})
	if err != nil {
		return fmt.Errorf("create observer: %w", err)
	}

	recorder, err := observe.RecorderFromObserver(obs)
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}
	log := obs.Logger()
	log.Info(ctx, "configuration", observe.Field{Key: "config", Value: cfg.Redacted()})

	store := server.NewMemoryStore(nil)

	guard := connguard.New(buildProbe(cfg, store), connguard.Config{
		ProbeTimeout:     cfg.ProbeTimeout,
		ReconnectTimeout: cfg.ReconnectTimeout,
		Recorder:         recorder,
	})

	coord := coordinator.New(guard,
		coordinator.WithWorkers(cfg.Workers),
		coordinator.WithDefaultDeadline(cfg.DefaultDeadline),
		coordinator.WithRecorder(recorder),
	)

	opts := []server.Option{server.WithLogger(log)}
	if cfg.MetricsExporter == "prometheus" {
		opts = append(opts, server.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(coord, store, opts...).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", observe.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info(ctx, "received signal, stopping...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "http shutdown", observe.Err(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("observer shutdown: %w", err)
	}
	return nil
}

// buildProbe returns the probe named by cfg.ProbeKind. The always probe
// follows the demo store, so taking the store offline is visible to the
// guard.
func buildProbe(cfg config.Config, store *server.MemoryStore) connguard.Probe {
	switch cfg.ProbeKind {
	case config.ProbeHTTP:
		return connguard.NewHTTPProbe(cfg.ProbeTarget, nil)
	case config.ProbeDial:
		return connguard.NewDialProbe("tcp", cfg.ProbeTarget)
	case config.ProbeSession:
		return connguard.NewSessionProbe(cfg.SessionToken,
			connguard.NewStaticKeyProvider([]byte(cfg.SessionKey)), nil, connguard.SessionConfig{})
	default:
		return connguard.ProbeFuncs{ReachableFunc: store.Online}
	}
}
