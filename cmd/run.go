/*
Copyright © 2025 jesse galley <jesse@jessegalley.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jessegalley/fileserver/internal/config"
	"github.com/jessegalley/fileserver/internal/engine"
	"github.com/jessegalley/fileserver/internal/layout"
	"github.com/jessegalley/fileserver/internal/logger"
	"github.com/jessegalley/fileserver/internal/output"
	"github.com/jessegalley/fileserver/internal/runners"
	"github.com/jessegalley/fileserver/internal/stats"
)

// loadConfig merges defaults, the config file, the environment and the flags
// of cmd. a positional directory argument beats every other source. on any
// error the usage line is printed and the program exits.
func loadConfig(cmd *cobra.Command, args []string, defaults *config.Config) *config.Config {
	cfg, err := config.Load(cfgFile, cmd.Flags(), defaults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "usage: %s\n", cmd.UseLine())
		os.Exit(1)
	}

	// positional test_path overrides every other source
	if len(args) == 1 {
		cfg.Directory = args[0]
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Level: level, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Debug {
		logger.Debug("effective configuration", "config", spew.Sdump(cfg))
	}

	return cfg
}

// runWorkload runs one benchmark with cfg and prints the result. it exits
// with status 1 when the run fails.
func runWorkload(cfg *config.Config, workload runners.Workload) {
	format, err := output.ValidateFormat(cfg.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runners.Options{Workload: workload}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		opts.Metrics = engine.NewMetrics(reg)

		shutdown := serveMetrics(cfg.MetricsAddr, reg)
		defer shutdown()
	}

	collector := stats.NewCollector(cfg.NumJobs*2, 10, true)
	display := stats.NewDisplay(collector, os.Stderr, stats.DisplayConfig{
		UpdateInterval: time.Second,
		ShowLatency:    true,
		ShowProgress:   true,
		TestDuration:   cfg.Runtime,
		Quiet:          cfg.Quiet,
	})

	display.Start()
	result, err := runners.Run(ctx, cfg, collector, opts)
	display.Stop()

	if err != nil {
		fail(err)
	}

	formatted, err := output.FormatResult(result, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error formatting results: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(formatted)

	if cfg.Output != "" {
		if err := output.WriteFile(cfg.Output, formatted); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// fail prints the diagnostic for a failed run and exits
func fail(err error) {
	var se *layout.StructuralError
	if errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "Error %s\n", se.Error())
		logger.Debug("run aborted", logger.KeyError, err)
	} else {
		fmt.Fprintf(os.Stderr, "test failed: %v\n", err)
	}
	os.Exit(1)
}

// serveMetrics exposes reg on addr until the returned function is called
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	s := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logger.KeyError, err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", logger.KeyError, err)
		}
	}
}
