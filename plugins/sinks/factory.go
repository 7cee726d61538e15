// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sinks

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/wavefronthq/graphite-parser/internal/configuration"
	"github.com/wavefronthq/graphite-parser/plugins/sinks/influx"
	"github.com/wavefronthq/graphite-parser/plugins/sinks/wavefront"
)

type SinkFactory struct {
	version string
}

func (this *SinkFactory) Build(cfg configuration.SinkConfig) (Sink, error) {
	var sink Sink
	var err error
	switch cfg.Type {
	case configuration.WavefrontSinkType:
		sink, err = wavefront.NewWavefrontSink(cfg, this.version)
	case configuration.InfluxSinkType:
		sink, err = influx.NewInfluxSink(cfg)
	default:
		return nil, fmt.Errorf("sink not recognized: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func (this *SinkFactory) BuildAll(cfgs []configuration.SinkConfig) ([]Sink, error) {
	result := make([]Sink, 0, len(cfgs))

	for _, cfg := range cfgs {
		sink, err := this.Build(cfg)
		if err != nil {
			log.Errorf("Failed to create %s sink: %v", cfg.Type, err)
			continue
		}
		result = append(result, sink)
	}

	if len(cfgs) != 0 && len(result) == 0 {
		return nil, fmt.Errorf("no available sink to use")
	}
	return result, nil
}

func NewSinkFactory(version string) *SinkFactory {
	return &SinkFactory{version: version}
}
