package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Alijeyrad/gotalk-coach/internal/analysis"
	"github.com/Alijeyrad/gotalk-coach/internal/config"
	"github.com/Alijeyrad/gotalk-coach/internal/duration"
	"github.com/Alijeyrad/gotalk-coach/internal/logging"
	"github.com/Alijeyrad/gotalk-coach/internal/metrics"
	"github.com/Alijeyrad/gotalk-coach/internal/pipeline"
	"github.com/Alijeyrad/gotalk-coach/internal/recording"
)

const appName = "GoTalk Coach"

type globalOptions struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

type app struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	registry *prometheus.Registry
	coord    *pipeline.Coordinator
	analysis *analysis.Client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "gotalk-coach",
		Short:        "Record or upload a spoken answer and get speaking feedback",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/gotalk-coach/config.json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(newRecordCmd(opts), newUploadCmd(opts), newHealthCmd(opts), newConfigCmd(opts))
	return root
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.analysis.Health(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "analysis service at %s is up\n", a.cfg.AnalysisURL)
				return nil
			})
		},
	}
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	return cfg, nil
}

func newApp(opts *globalOptions, stderr io.Writer) (*app, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	log, syncLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: stderr})
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	maxDur := time.Duration(cfg.MaxDuration) * time.Second
	ctrl := recording.NewController(recording.Options{
		MaxDuration: maxDur,
		Preferences: cfg.FormatPreferences,
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		Log:         log,
		Metrics:     m,
	})
	dur := &duration.Reconciler{
		MaxDuration:  maxDur,
		ProbeTimeout: time.Duration(cfg.ProbeTimeout) * time.Second,
	}
	client, err := analysis.NewClient(analysis.Config{
		BaseURL: cfg.AnalysisURL,
		Timeout: time.Duration(cfg.AnalysisTimeout) * time.Second,
		Retries: cfg.AnalysisRetries,
	}, log, m)
	if err != nil {
		syncLog()
		return nil, nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		coord:    pipeline.New(ctrl, dur, log, m),
		analysis: client,
	}, syncLog, nil
}

// run executes fn next to the optional metrics server. The server is shut
// down as soon as fn returns.
func run(cmd *cobra.Command, opts *globalOptions, fn func(context.Context, *app) error) error {
	a, syncLog, err := newApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer syncLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if addr := a.cfg.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(a.registry))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			a.log.Infow("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return fn(gctx, a)
	})
	return g.Wait()
}
