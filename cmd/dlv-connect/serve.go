package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xhd2015/dlv-connect/debug"
	"github.com/xhd2015/dlv-connect/telemetry"
	tools "github.com/xhd2015/dlv-connect/tools/debug"
)

type serveOptions struct {
	listen        string
	metricsListen string
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	serveOpts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the connect options tools over MCP",
		Long: `Serve the connect options tools over MCP.

Without --listen the server speaks MCP on stdio and logs to
~/.dlv-connect/dlv-connect.log unless --log-file is given.
With --listen it serves MCP over SSE on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, serveOpts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&serveOpts.listen, "listen", "", "Serve MCP over SSE on this address instead of stdio")
	flags.StringVar(&serveOpts.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address")
	return cmd
}

func runServe(opts *rootOptions, serveOpts *serveOptions) error {
	logFile := opts.logFile
	if logFile == "" && serveOpts.listen == "" {
		var err error
		logFile, err = defaultLogFile()
		if err != nil {
			return err
		}
	}
	log, flush, err := newLogger(opts.verbosity, logFile)
	if err != nil {
		return err
	}
	defer flush()

	var collector telemetry.Collector = telemetry.Noop()
	if serveOpts.metricsListen != "" {
		registry := prometheus.NewRegistry()
		prom, err := telemetry.NewPrometheusCollector(registry)
		if err != nil {
			return err
		}
		collector = prom
		serveMetrics(serveOpts.metricsListen, registry, log)
	}

	factory, err := opts.newFactory(log, collector)
	if err != nil {
		return err
	}
	manager := debug.NewOptionsManager(factory)
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error(err, "Failed to release connect options on shutdown")
		}
	}()

	s := server.NewMCPServer(
		"Delve Connect Options MCP",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	if err := tools.RegisterTools(s, tools.ToolOptions{
		Manager: manager,
		Logger:  log.WithName("tools"),
	}); err != nil {
		return err
	}

	if serveOpts.listen == "" {
		log.Info("MCP Server listening on stdio")
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	log.Info("MCP Server listening", "address", serveOpts.listen)
	sseServer := server.NewSSEServer(s)
	return sseServer.Start(serveOpts.listen)
}

func serveMetrics(addr string, registry *prometheus.Registry, log logr.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		log.Info("Serving metrics", "address", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Metrics server stopped")
		}
	}()
}
