// Copyright 2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package configuration

import (
	"github.com/wavefronthq/graphite-parser/internal/filter"
)

const (
	WavefrontSinkType = "wavefront"
	InfluxSinkType    = "influx"
)

// The main configuration struct that drives the graphite parser
type Config struct {
	// Map of regular expression to template. The longest matching pattern wins.
	Templates map[string]string `yaml:"templates" toml:"templates"`

	// Optional JSON or YAML file holding additional templates. Inline templates take precedence.
	TemplatesFile string `yaml:"templatesFile" toml:"templates_file"`

	// Stop wildcard segments one short of the last name segment. Defaults to false.
	LegacyWildcardRange bool `yaml:"legacyWildcardRange" toml:"legacy_wildcard_range"`

	Listener ListenerConfig `yaml:"listener" toml:"listener"`

	// list of sinks. Defaults to a single influx sink writing to stdout.
	Sinks []SinkConfig `yaml:"sinks" toml:"sinks"`

	// Filters applied to every parsed point before it reaches the sinks.
	Filters filter.Config `yaml:"filters" toml:"filters"`

	// Custom tags added to every parsed point. Tags produced by a template are kept.
	Tags map[string]string `yaml:"tags" toml:"tags"`

	InternalStats StatsConfig `yaml:"internalStats" toml:"internal_stats"`
}

// Configuration options for the plaintext listener
type ListenerConfig struct {
	// Address of the form host:port. Defaults to :2003.
	Address string `yaml:"address" toml:"address"`

	// Idle timeout per connection. Zero disables the deadline.
	ReadTimeout Duration `yaml:"readTimeout" toml:"read_timeout"`
}

// Configuration options for a sink
type SinkConfig struct {
	// One of wavefront or influx.
	Type string `yaml:"type" toml:"type"`

	// The prefix (dot suffixed) added to every metric name.
	Prefix string `yaml:"prefix" toml:"prefix"`

	// Custom tags to include with metrics sent to this sink.
	Tags map[string]string `yaml:"tags" toml:"tags"`

	// Filters to be applied prior to emitting the metrics.
	Filters filter.Config `yaml:"filters" toml:"filters"`

	// The Wavefront URL of the form https://YOUR_INSTANCE.wavefront.com. Only required for direct ingestion.
	Server string `yaml:"server" toml:"server"`

	// The Wavefront API token with direct data ingestion permission. Only required for direct ingestion.
	Token string `yaml:"token" toml:"token"`

	// The Wavefront proxy address of the form wavefront-proxy:2878.
	ProxyAddress string `yaml:"proxyAddress" toml:"proxy_address"`

	// Max batch of data sent per flush interval. Defaults to 10,000. Only applies to direct ingestion.
	BatchSize int `yaml:"batchSize" toml:"batch_size"`

	// Max points per flush interval that can be buffered. Defaults to 50,000. Only applies to direct ingestion.
	MaxBufferSize int `yaml:"maxBufferSize" toml:"max_buffer_size"`

	// If set to true, metrics are recorded and logged instead of sent. Defaults to false.
	TestMode bool `yaml:"testMode" toml:"test_mode"`

	// Report the internal counters through this sink's sender. Defaults to false.
	ReportInternalStats bool `yaml:"reportInternalStats" toml:"report_internal_stats"`

	// Where influx line protocol is written. Empty or "-" means stdout.
	// Parsed timestamps are read as milliseconds, see TimestampPrecision.
	Output string `yaml:"output" toml:"output"`

	// Unit of the timestamps sent by graphite clients, for the influx sink. Defaults to 1ms.
	// Set to 1s when clients send epoch seconds, otherwise lines are dated January 1970.
	TimestampPrecision Duration `yaml:"timestampPrecision" toml:"timestamp_precision"`
}

// Configuration options for internal stats
type StatsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Defaults to 60 seconds.
	Interval Duration `yaml:"interval" toml:"interval"`

	// Defaults to "graphite.parser."
	Prefix string `yaml:"prefix" toml:"prefix"`

	// Address for serving the counters in Prometheus text format. Disabled when empty.
	MetricsAddress string `yaml:"metricsAddress" toml:"metrics_address"`
}
