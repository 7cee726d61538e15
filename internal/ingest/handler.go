// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ingest feeds graphite plaintext lines through the parser into the sinks.
package ingest

import (
	"bufio"
	"io"
	"strings"

	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"github.com/wavefronthq/go-metrics-wavefront/reporting"

	"github.com/wavefronthq/graphite-parser/internal/filter"
	"github.com/wavefronthq/graphite-parser/internal/graphite"
	"github.com/wavefronthq/graphite-parser/internal/point"
)

const (
	maxLineLength = 1024 * 1024

	formatFailure = "format"
	valueFailure  = "value"
	otherFailure  = "other"
)

var (
	receivedLines gm.Counter
	parsedLines   gm.Counter
	filteredLines gm.Counter
	exportErrors  gm.Counter
	failedLines   = map[string]gm.Counter{}
)

func init() {
	receivedLines = gm.GetOrRegisterCounter("ingest.lines.received.count", gm.DefaultRegistry)
	parsedLines = gm.GetOrRegisterCounter("ingest.lines.parsed.count", gm.DefaultRegistry)
	filteredLines = gm.GetOrRegisterCounter("ingest.lines.filtered.count", gm.DefaultRegistry)
	exportErrors = gm.GetOrRegisterCounter("ingest.export.errors.count", gm.DefaultRegistry)
	for _, reason := range []string{formatFailure, valueFailure, otherFailure} {
		key := reporting.EncodeKey("ingest.lines.failed.count", map[string]string{"reason": reason})
		failedLines[reason] = gm.GetOrRegisterCounter(key, gm.DefaultRegistry)
	}
}

type Parser interface {
	Parse(line string) (*point.Point, error)
}

type Exporter interface {
	Export(p *point.Point) error
}

// Handler turns plaintext lines into points and hands them to an exporter.
type Handler struct {
	parser   Parser
	exporter Exporter
	tags     map[string]string
	filters  filter.Filter
}

// NewHandler adds tags to every point, without overriding template tags, and drops
// points rejected by f. A nil f keeps everything.
func NewHandler(parser Parser, exporter Exporter, tags map[string]string, f filter.Filter) *Handler {
	return &Handler{
		parser:   parser,
		exporter: exporter,
		tags:     tags,
		filters:  f,
	}
}

// HandleLine parses and exports a single line. Blank lines are ignored.
func (h *Handler) HandleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	receivedLines.Inc(1)

	p, err := h.parser.Parse(line)
	if err != nil {
		reason := failureReason(err)
		failedLines[reason].Inc(1)
		log.WithFields(log.Fields{
			"reason": reason,
			"error":  err,
		}).Debug("unable to parse line")
		return err
	}
	parsedLines.Inc(1)

	p.AddTags(h.tags)
	p = filter.Apply(h.filters, filteredLines, p)
	if p == nil {
		return nil
	}
	if err := h.exporter.Export(p); err != nil {
		exportErrors.Inc(1)
		log.WithField("name", p.Measurement).Debugf("error exporting point: %v", err)
	}
	return nil
}

// Handle reads newline separated lines from r until EOF. Lines that fail to parse
// are counted and skipped. Only read errors are returned.
func (h *Handler) Handle(r io.Reader) error {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 64*1024), maxLineLength)
	for lines.Scan() {
		_ = h.HandleLine(lines.Text())
	}
	return lines.Err()
}

func failureReason(err error) string {
	switch {
	case graphite.IsFormatError(err):
		return formatFailure
	case graphite.IsValueError(err):
		return valueFailure
	default:
		return otherFailure
	}
}
