package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"nyc311/internal/config"
	"nyc311/internal/etl"
	"nyc311/internal/metrics"
	"nyc311/internal/metrics/datadog"
	"nyc311/internal/metrics/prompush"
	"nyc311/internal/schema"
	"nyc311/internal/storage"

	// register all backends with the storage factory.
	// config selects which one to use but the binary supports all of them.
	_ "nyc311/internal/storage/all"
)

// main is the entry point for the batch loader. It loads configuration,
// optionally initializes a metrics backend, opens the storage backend, and
// executes the chunked load.
func main() {
	var (
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
	)

	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none; overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DATADOG_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	// Load defines the remaining flags and parses os.Args.
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		fatalf("invalid configuration: %v", err)
	}
	if validate {
		log.Printf("Configuration is valid")
		return
	}

	setupMetrics(metricsBackendFlg, pushGatewayURLFlg, datadogAddrFlg, *verbose)
	defer flushMetrics()

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("load: csv=%s storage=%s table=%s chunk_size=%d",
			cfg.CSVFile, cfg.DBKind, cfg.Table, cfg.ChunkSize)
	}

	repo, err := storage.New(ctx, storage.Config{
		Kind:      cfg.DBKind,
		DSN:       cfg.BuildDSN(),
		Table:     cfg.Table,
		KeyColumn: schema.KeyColumn,
	})
	if err != nil {
		fatalf("open storage: %v", err)
	}
	defer repo.Close()

	if _, err := etl.Run(ctx, cfg, repo, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error during ETL: %v\n", err)
		os.Stderr.Write(debug.Stack())
		repo.Close()
		flushMetrics()
		os.Exit(1)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// resolveMetricsSettings applies the flag, then environment, then default
// precedence for the metrics backend selection and its endpoints. getenv is
// a parameter so tests can run hermetically.
func resolveMetricsSettings(backendName, gwURL, ddAddr string, getenv func(string) string) (string, string, string) {
	if backendName == "" {
		backendName = getenv("METRICS_BACKEND")
	}
	if backendName == "" {
		backendName = "none"
	}
	if gwURL == "" {
		gwURL = getenv("PUSHGATEWAY_URL")
	}
	if gwURL == "" {
		gwURL = "http://localhost:9091"
	}
	if ddAddr == "" {
		ddAddr = getenv("DATADOG_ADDR")
	}
	if ddAddr == "" {
		ddAddr = "127.0.0.1:8125"
	}
	return backendName, gwURL, ddAddr
}

// setupMetrics installs the selected metrics backend. Failures leave the nop
// backend in place; metrics never block a load.
func setupMetrics(backendName, gwURL, ddAddr string, verbose bool) {
	backendName, gwURL, ddAddr = resolveMetricsSettings(backendName, gwURL, ddAddr, os.Getenv)
	switch backendName {
	case "pushgateway":
		b, err := prompush.NewBackend("nyc311_load", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		if verbose {
			log.Printf("metrics: backend=pushgateway url=%s", gwURL)
		}
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr, Namespace: "nyc311."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		if verbose {
			log.Printf("metrics: backend=datadog addr=%s", ddAddr)
		}
		metrics.SetBackend(b)

	case "none":
		if verbose {
			log.Printf("metrics: disabled")
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func flushMetrics() {
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
