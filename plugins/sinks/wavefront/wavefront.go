// Copyright 2018-2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package wavefront

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"github.com/wavefronthq/go-metrics-wavefront/reporting"
	"github.com/wavefronthq/wavefront-sdk-go/application"
	"github.com/wavefronthq/wavefront-sdk-go/senders"

	"github.com/wavefronthq/graphite-parser/internal/configuration"
	"github.com/wavefronthq/graphite-parser/internal/filter"
	"github.com/wavefronthq/graphite-parser/internal/point"
)

const (
	proxyClient  = 1
	directClient = 2
	testClient   = 3
)

const (
	maxWavefrontTags  = 20 // the maximum numbers of tags allowed in a wavefront point not including source
	heartbeatInterval = 1 * time.Minute
	heartbeatMetric   = "~graphite.parser.version"
	reporterPrefix    = "graphite.parser"
	defaultSource     = "graphite-parser"
)

var (
	sentPoints     gm.Counter
	errPoints      gm.Counter
	filteredPoints gm.Counter
	clientType     gm.Gauge
	sanitizedChars = strings.NewReplacer("+", "-", " ", "_")
	sourceTagKeys  = []string{"source", "host"}
)

func init() {
	sentPoints = gm.GetOrRegisterCounter("wavefront.points.sent.count", gm.DefaultRegistry)
	errPoints = gm.GetOrRegisterCounter("wavefront.points.errors.count", gm.DefaultRegistry)
	filteredPoints = gm.GetOrRegisterCounter("wavefront.points.filtered.count", gm.DefaultRegistry)
	clientType = gm.GetOrRegisterGauge("wavefront.sender.type", gm.DefaultRegistry)
}

type WavefrontSink struct {
	WavefrontClient senders.Sender
	Prefix          string
	Source          string
	Version         string
	globalTags      map[string]string
	filters         filter.Filter
	reporter        reporting.WavefrontMetricsReporter
	logPercent      float32
	stopHeartbeat   chan struct{}
}

func NewWavefrontSink(cfg configuration.SinkConfig, version string) (*WavefrontSink, error) {
	storage := &WavefrontSink{
		Source:     hostname(),
		Version:    version,
		logPercent: 0.01,
	}

	if cfg.TestMode {
		storage.WavefrontClient = NewTestSender()
		clientType.Update(testClient)
	} else if cfg.ProxyAddress != "" {
		s := strings.Split(cfg.ProxyAddress, ":")
		if len(s) != 2 {
			return nil, fmt.Errorf("error parsing proxy address: %s", cfg.ProxyAddress)
		}
		host, portStr := s[0], s[1]
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing proxy port: %s", err.Error())
		}
		storage.WavefrontClient, err = senders.NewProxySender(&senders.ProxyConfiguration{
			Host:        host,
			MetricsPort: port,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating proxy sender: %s", err.Error())
		}
		clientType.Update(proxyClient)
	} else if cfg.Server != "" {
		if len(cfg.Token) == 0 {
			return nil, fmt.Errorf("token missing for Wavefront sink")
		}
		var err error
		storage.WavefrontClient, err = senders.NewDirectSender(&senders.DirectConfiguration{
			Server:        cfg.Server,
			Token:         cfg.Token,
			BatchSize:     cfg.BatchSize,
			MaxBufferSize: cfg.MaxBufferSize,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating direct sender: %s", err.Error())
		}
		clientType.Update(directClient)
	}
	if storage.WavefrontClient == nil {
		return nil, fmt.Errorf("proxyAddress or server property required for sinks")
	}

	storage.globalTags = cfg.Tags
	if cfg.Prefix != "" {
		storage.Prefix = strings.Trim(cfg.Prefix, ".")
	}
	storage.filters = filter.FromConfig(cfg.Filters)

	if cfg.ReportInternalStats {
		storage.reporter = reporting.NewReporter(
			storage.WavefrontClient,
			application.New("graphite-parser", "parser"),
			reporting.Source(storage.Source),
			reporting.Prefix(reporterPrefix),
			reporting.Interval(heartbeatInterval),
			reporting.LogErrors(true),
		)
	}

	storage.emitHeartbeat(storage.WavefrontClient)

	return storage, nil
}

func (sink *WavefrontSink) Name() string {
	return "wavefront_sink"
}

func (sink *WavefrontSink) Stop() {
	close(sink.stopHeartbeat)
	if sink.reporter != nil {
		// the reporter flushes once more and closes the shared sender
		sink.reporter.Close()
		return
	}
	sink.WavefrontClient.Close()
}

// Export sends a single point. Tags named source or host become the Wavefront source.
func (sink *WavefrontSink) Export(p *point.Point) error {
	if p == nil {
		return nil
	}
	p.AddTags(sink.globalTags)
	p = filter.Apply(sink.filters, filteredPoints, p)
	if p == nil {
		return nil
	}

	name := sink.metricName(p)
	_, value := p.Field()
	tags := p.CopyTags()
	source := sink.extractSource(tags)
	logTagCleaningReasons(name, cleanTags(tags, maxWavefrontTags))

	err := sink.WavefrontClient.SendMetric(name, value, p.Time, source, tags)
	if err != nil {
		errPoints.Inc(1)
		sink.logVerboseError(log.Fields{
			"name":  name,
			"error": err,
		}, "error sending metric")
		return err
	}
	sentPoints.Inc(1)
	return nil
}

func (sink *WavefrontSink) metricName(p *point.Point) string {
	name := sanitizedChars.Replace(p.MetricName())
	if len(sink.Prefix) > 0 {
		name = sink.Prefix + "." + name
	}
	return name
}

func (sink *WavefrontSink) extractSource(tags map[string]string) string {
	for _, key := range sourceTagKeys {
		if source, ok := tags[key]; ok && source != "" {
			delete(tags, key)
			return source
		}
	}
	return sink.Source
}

func (sink *WavefrontSink) logVerboseError(f log.Fields, msg string) {
	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithFields(f).Error(msg)
	} else if sink.loggingAllowed() {
		log.WithFields(f).Errorf("%s %s", "[sampled error]", msg)
	}
}

func (sink *WavefrontSink) loggingAllowed() bool {
	return rand.Float32() <= sink.logPercent
}

func (sink *WavefrontSink) emitHeartbeat(sender senders.Sender) {
	ticker := time.NewTicker(heartbeatInterval)
	sink.stopHeartbeat = make(chan struct{})
	tags := map[string]string{
		"version": configuration.GetStringValue(sink.Version, "unknown"),
	}

	go func() {
		log.Debug("emitting heartbeat metric")
		if err := sender.SendMetric(heartbeatMetric, 1.0, 0, sink.Source, tags); err != nil {
			log.Debugf("error emitting heartbeat metric :%v", err)
		}
		for {
			select {
			case <-ticker.C:
				_ = sender.SendMetric(heartbeatMetric, 1.0, 0, sink.Source, tags)
				sink.logStatus()
			case <-sink.stopHeartbeat:
				log.Info("stopping heartbeat")
				ticker.Stop()
				return
			}
		}
	}()
}

func (sink *WavefrontSink) logStatus() {
	sent := sentPoints.Count()
	errs := errPoints.Count()
	if sent > 0 || errs > 0 {
		log.WithFields(log.Fields{
			"sent":     sent,
			"errors":   errs,
			"filtered": filteredPoints.Count(),
		}).Info("Points processed")
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return defaultSource
	}
	return name
}
