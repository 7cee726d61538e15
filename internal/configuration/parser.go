// Copyright 2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package configuration

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/influxdata/toml"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v2"
)

const (
	DefaultListenAddress = ":2003"
	DefaultStatsInterval = 60 * time.Second
	DefaultStatsPrefix   = "graphite.parser."
	DefaultInfluxOutput  = "-"
	tomlExtension        = ".toml"
	jsonExtension        = ".json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FromFile loads the configuration from a given file.
// Files ending in .toml are read as TOML, everything else as YAML.
func FromFile(filename string) (*Config, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to load configuration file: %v", err)
	}
	if strings.EqualFold(filepath.Ext(filename), tomlExtension) {
		return FromTOML(contents)
	}
	return FromYAML(contents)
}

// FromYAML loads the configuration from a blob of YAML.
func FromYAML(contents []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration: %v", err)
	}
	return &cfg, nil
}

// FromTOML loads the configuration from a blob of TOML.
func FromTOML(contents []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration: %v", err)
	}
	return &cfg, nil
}

// LoadTemplates reads a flat pattern to template map.
// Files ending in .json are read as JSON, everything else as YAML.
func LoadTemplates(filename string) (map[string]string, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to load templates file: %v", err)
	}
	templates := make(map[string]string)
	if strings.EqualFold(filepath.Ext(filename), jsonExtension) {
		err = json.Unmarshal(contents, &templates)
	} else {
		err = yaml.UnmarshalStrict(contents, &templates)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse templates file %s: %v", filename, err)
	}
	return templates, nil
}

// AllTemplates merges the templates file, if any, with the inline templates.
func (cfg *Config) AllTemplates() (map[string]string, error) {
	templates := make(map[string]string, len(cfg.Templates))
	if cfg.TemplatesFile != "" {
		loaded, err := LoadTemplates(cfg.TemplatesFile)
		if err != nil {
			return nil, err
		}
		for k, v := range loaded {
			templates[k] = v
		}
	}
	for k, v := range cfg.Templates {
		templates[k] = v
	}
	return templates, nil
}

// SetDefaults fills in unset values.
func (cfg *Config) SetDefaults() {
	cfg.Listener.Address = GetStringValue(cfg.Listener.Address, DefaultListenAddress)
	cfg.InternalStats.Interval.Duration = GetDurationValue(cfg.InternalStats.Interval.Duration, DefaultStatsInterval)
	cfg.InternalStats.Prefix = GetStringValue(cfg.InternalStats.Prefix, DefaultStatsPrefix)
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []SinkConfig{{Type: InfluxSinkType}}
	}
	for i := range cfg.Sinks {
		sink := &cfg.Sinks[i]
		sink.Type = strings.ToLower(GetStringValue(sink.Type, WavefrontSinkType))
		if sink.Type == InfluxSinkType {
			sink.Output = GetStringValue(sink.Output, DefaultInfluxOutput)
		}
	}
}

// Validate reports configuration errors that would prevent startup.
func (cfg *Config) Validate() error {
	for i, sink := range cfg.Sinks {
		switch sink.Type {
		case WavefrontSinkType:
			if !sink.TestMode && sink.ProxyAddress == "" && sink.Server == "" {
				return fmt.Errorf("sink %d: proxyAddress or server is required", i)
			}
			if sink.Server != "" && sink.Token == "" {
				return fmt.Errorf("sink %d: token missing for Wavefront sink", i)
			}
		case InfluxSinkType:
		default:
			return fmt.Errorf("sink %d: unknown sink type %q", i, sink.Type)
		}
	}
	if cfg.InternalStats.Interval.Duration < 0 {
		return fmt.Errorf("internalStats.interval must not be negative")
	}
	return nil
}
