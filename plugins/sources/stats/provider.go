// Copyright 2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package stats provides internal metrics on the health of the graphite parser
package stats

import (
	"context"
	"sync"
	"time"

	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/wavefronthq/graphite-parser/internal/configuration"
	"github.com/wavefronthq/graphite-parser/internal/point"
)

var doOnce sync.Once

// Exporter receives the stats points, typically the sink manager.
type Exporter interface {
	Export(p *point.Point) error
}

type InternalMetricsSource struct {
	prefix       string
	tags         map[string]string
	registry     gm.Registry
	runtimeStats bool
	process      *processStats
}

// NewInternalMetricsSource reports the default go-metrics registry including runtime memory
// and process stats.
func NewInternalMetricsSource(cfg configuration.StatsConfig, tags map[string]string) *InternalMetricsSource {
	doOnce.Do(func() { // Temporal solution for https://github.com/rcrowley/go-metrics/issues/252
		gm.RegisterRuntimeMemStats(gm.DefaultRegistry)
	})
	src := newInternalMetricsSource(cfg, tags, gm.DefaultRegistry)
	src.runtimeStats = true
	src.process = newSelfProcessStats(gm.DefaultRegistry)
	return src
}

func newInternalMetricsSource(cfg configuration.StatsConfig, tags map[string]string, registry gm.Registry) *InternalMetricsSource {
	return &InternalMetricsSource{
		prefix:   configuration.GetStringValue(cfg.Prefix, configuration.DefaultStatsPrefix),
		tags:     tags,
		registry: registry,
	}
}

func (src *InternalMetricsSource) Name() string {
	return "internal_stats_source"
}

// Scrape converts every registered metric into points.
func (src *InternalMetricsSource) Scrape() []*point.Point {
	return src.internalStats(time.Now())
}

// Report exports a scrape every interval until ctx is done.
func (src *InternalMetricsSource) Report(ctx context.Context, interval time.Duration, exporter Exporter) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping internal stats reporting")
			return
		case <-ticker.C:
			src.export(exporter)
		}
	}
}

func (src *InternalMetricsSource) export(exporter Exporter) {
	points := src.Scrape()
	errs := 0
	for _, p := range points {
		if err := exporter.Export(p); err != nil {
			errs++
		}
	}
	log.WithFields(log.Fields{
		"points": len(points),
		"errors": errs,
	}).Debug("internal stats exported")
}

// buildTags returns a new map so sinks may mutate the point tags freely.
func (src *InternalMetricsSource) buildTags(tags map[string]string) map[string]string {
	result := make(map[string]string, len(src.tags)+len(tags))
	for k, v := range src.tags {
		result[k] = v
	}
	for k, v := range tags {
		result[k] = v
	}
	return result
}
