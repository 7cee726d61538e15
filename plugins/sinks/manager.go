// Based on https://github.com/kubernetes-retired/heapster/blob/master/metrics/sinks/manager.go
// Diff against master for changes to the original code.

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

// Copyright 2018-2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sinks

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/wavefronthq/graphite-parser/internal/point"
)

const (
	DefaultSinkExportTimeout = 5 * time.Second
	DefaultSinkStopTimeout   = 60 * time.Second
	sinkQueueSize            = 1024
)

var (
	sinkTimeouts gm.Counter

	ManagerStoppedErr = errors.New("sink manager stopped")
)

func init() {
	sinkTimeouts = gm.GetOrRegisterCounter("sink.manager.timeouts", gm.DefaultRegistry)
}

// Sink receives parsed points.
type Sink interface {
	Name() string
	Export(p *point.Point) error
	Stop()
}

type sinkHolder struct {
	sink   Sink
	points chan *point.Point
	done   chan struct{}
}

// Sink Manager - a special sink that distributes points to other sinks. Every sink
// receives its own copy of a point. Points that could not be queued for a sink in
// the defined time are dropped and not retried.
type sinkManager struct {
	sinkHolders       []sinkHolder
	exportDataTimeout time.Duration
	stopTimeout       time.Duration

	mtx     sync.RWMutex
	stopped bool
}

func NewSinkManager(sinks []Sink, exportDataTimeout, stopTimeout time.Duration) Sink {
	var sinkHolders []sinkHolder
	for _, sink := range sinks {
		sh := sinkHolder{
			sink:   sink,
			points: make(chan *point.Point, sinkQueueSize),
			done:   make(chan struct{}),
		}
		sinkHolders = append(sinkHolders, sh)
		go func(sh sinkHolder) {
			for p := range sh.points {
				if err := sh.sink.Export(p); err != nil {
					log.WithFields(log.Fields{
						"name":  sh.sink.Name(),
						"error": err,
					}).Debug("export failed")
				}
			}
			log.WithField("name", sh.sink.Name()).Info("Sink stop received")
			sh.sink.Stop()
			close(sh.done)
		}(sh)
	}
	return &sinkManager{
		sinkHolders:       sinkHolders,
		exportDataTimeout: exportDataTimeout,
		stopTimeout:       stopTimeout,
	}
}

// Export queues the point on every sink, waiting at most exportDataTimeout per sink.
func (this *sinkManager) Export(p *point.Point) error {
	if p == nil {
		return nil
	}
	this.mtx.RLock()
	defer this.mtx.RUnlock()
	if this.stopped {
		return ManagerStoppedErr
	}

	dropped := 0
	for _, sh := range this.sinkHolders {
		if !this.push(sh, p.Clone()) {
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("point %s dropped by %d sink(s)", p.Measurement, dropped)
	}
	return nil
}

func (this *sinkManager) push(sh sinkHolder, p *point.Point) bool {
	select {
	case sh.points <- p:
		return true
	default:
	}

	timer := time.NewTimer(this.exportDataTimeout)
	defer timer.Stop()
	select {
	case sh.points <- p:
		return true
	case <-timer.C:
		sinkTimeouts.Inc(1)
		log.WithField("name", sh.sink.Name()).Info("Data push failed")
		return false
	}
}

func (this *sinkManager) Name() string {
	return "Manager"
}

// Stop drains queued points into each sink and then stops it.
func (this *sinkManager) Stop() {
	this.mtx.Lock()
	if this.stopped {
		this.mtx.Unlock()
		return
	}
	this.stopped = true
	for _, sh := range this.sinkHolders {
		log.Infof("Running stop for: %s", sh.sink.Name())
		close(sh.points)
	}
	this.mtx.Unlock()

	timeout := time.After(this.stopTimeout)
	for _, sh := range this.sinkHolders {
		select {
		case <-sh.done:
			log.Infof("Stopped sink: %s", sh.sink.Name())
		case <-timeout:
			log.Warningf("Failed to stop sink: %s", sh.sink.Name())
		}
	}
}
