// Copyright 2018-2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/wavefronthq/graphite-parser/internal/configuration"
	"github.com/wavefronthq/graphite-parser/internal/filter"
	"github.com/wavefronthq/graphite-parser/internal/graphite"
	"github.com/wavefronthq/graphite-parser/internal/ingest"
	"github.com/wavefronthq/graphite-parser/internal/options"
	"github.com/wavefronthq/graphite-parser/plugins/sinks"
	"github.com/wavefronthq/graphite-parser/plugins/sources/stats"
)

var (
	version string
	commit  string
)

const stdinInput = "-"

func main() {
	opts := options.Parse()

	if opts.Version {
		fmt.Println(fmt.Sprintf("version: %s\ncommit: %s", version, commit))
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFormatter(opts.LogFormat.Formatter())
	if level, err := log.ParseLevel(opts.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("unknown log level %q, using info", opts.LogLevel)
		log.SetLevel(log.InfoLevel)
	}

	registerVersion()
	setMaxProcs(opts)
	log.Infof(strings.Join(os.Args, " "))
	log.Infof("graphite-parser version %v", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatal(err)
	}
}

// run blocks until the input is consumed or, in listener mode, until ctx is done.
func run(ctx context.Context, opts *options.ParserRunOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	parser, err := buildParser(cfg)
	if err != nil {
		return err
	}

	sinkList, err := sinks.NewSinkFactory(version).BuildAll(cfg.Sinks)
	if err != nil {
		return err
	}
	for _, sink := range sinkList {
		log.Infof("Starting with sink %s", sink.Name())
	}
	sinkManager := sinks.NewSinkManager(sinkList, sinks.DefaultSinkExportTimeout, sinks.DefaultSinkStopTimeout)
	defer sinkManager.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	startInternalStats(ctx, cfg, sinkManager)

	handler := ingest.NewHandler(parser, sinkManager, cfg.Tags, filter.FromConfig(cfg.Filters))
	if opts.Input != "" {
		return consume(opts.Input, handler)
	}

	listener := ingest.NewListener(cfg.Listener.Address, cfg.Listener.ReadTimeout.Duration, handler)
	if err := listener.Listen(); err != nil {
		return err
	}
	notify(daemon.SdNotifyReady)
	defer notify(daemon.SdNotifyStopping)
	return listener.Serve(ctx)
}

// notify reports the service state to systemd. It is a no-op outside a systemd unit.
func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warnf("error notifying systemd: %v", err)
		return
	}
	if sent {
		log.Debugf("systemd notified: %s", state)
	}
}

// loadConfig reads the optional configuration file and applies the flag overrides.
func loadConfig(opts *options.ParserRunOptions) (*configuration.Config, error) {
	cfg := &configuration.Config{}
	if opts.ConfigFile != "" {
		var err error
		cfg, err = configuration.FromFile(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("error loading config file %s: %v", opts.ConfigFile, err)
		}
	}
	if opts.TemplatesFile != "" {
		cfg.TemplatesFile = opts.TemplatesFile
	}
	if opts.ListenAddress != "" {
		cfg.Listener.Address = opts.ListenAddress
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

func buildParser(cfg *configuration.Config) (*graphite.Parser, error) {
	templates, err := cfg.AllTemplates()
	if err != nil {
		return nil, err
	}
	var parserOpts []graphite.Option
	if cfg.LegacyWildcardRange {
		parserOpts = append(parserOpts, graphite.WithLegacyWildcardRange())
	}
	return graphite.NewParser(templates, parserOpts...)
}

func startInternalStats(ctx context.Context, cfg *configuration.Config, exporter stats.Exporter) {
	if !cfg.InternalStats.Enabled {
		return
	}
	src := stats.NewInternalMetricsSource(cfg.InternalStats, cfg.Tags)
	go src.Report(ctx, cfg.InternalStats.Interval.Duration, exporter)

	if cfg.InternalStats.MetricsAddress != "" {
		go func() {
			if err := stats.Serve(ctx, cfg.InternalStats.MetricsAddress); err != nil {
				log.Errorf("metrics server stopped: %v", err)
			}
		}()
	}
}

func consume(input string, handler *ingest.Handler) error {
	var r io.Reader = os.Stdin
	if input != stdinInput {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return handler.Handle(r)
}

func registerVersion() {
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return
	}
	friendly := fmt.Sprintf("%s.%s%s", parts[0], parts[1], parts[2])
	f, err := strconv.ParseFloat(friendly, 64)
	if err != nil {
		f = 0.0
	}
	m := gm.GetOrRegisterGaugeFloat64("version", gm.DefaultRegistry)
	m.Update(f)
}

func setMaxProcs(opts *options.ParserRunOptions) {
	// Allow as many threads as we have cores unless the user specified a value.
	var numProcs int
	if opts.MaxProcs < 1 {
		numProcs = runtime.NumCPU()
	} else {
		numProcs = opts.MaxProcs
	}
	runtime.GOMAXPROCS(numProcs)

	// Check if the setting was successful.
	actualNumProcs := runtime.GOMAXPROCS(0)
	if actualNumProcs != numProcs {
		log.Warningf("Specified max procs of %d but using %d", numProcs, actualNumProcs)
	}
}
