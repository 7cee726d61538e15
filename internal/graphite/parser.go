// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"math"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wavefronthq/graphite-parser/internal/point"
)

// int64 bounds as float64; 2^63 itself is not representable as int64
const (
	minTimestamp = -9223372036854775808.0
	maxTimestamp = 9223372036854775808.0
)

type Option func(*Parser)

// WithClock replaces the wall clock used for lines without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// WithLegacyWildcardRange makes 'measurement*' and 'field*' stop before the last
// name segment. This is the classic behaviour of the template language and the
// only one older deployments know.
func WithLegacyWildcardRange() Option {
	return func(p *Parser) {
		p.excludeLast = true
	}
}

// Parser converts Graphite plaintext lines into points. A Parser holds no mutable
// state and may be shared between goroutines.
type Parser struct {
	index       *TemplateIndex
	diagnostics []Diagnostic
	now         func() time.Time
	excludeLast bool
}

// NewParser builds the template index from a regex -> template map and validates it once.
// Invalid templates are logged and kept.
func NewParser(templates map[string]string, opts ...Option) (*Parser, error) {
	index, err := NewTemplateIndex(templates)
	if err != nil {
		return nil, err
	}
	p := &Parser{
		index: index,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.diagnostics = index.Validate()
	LogDiagnostics(p.diagnostics)
	log.WithField("count", index.Len()).Debug("graphite templates loaded")
	return p, nil
}

func (p *Parser) Index() *TemplateIndex {
	return p.index
}

// Diagnostics returns the template findings collected at construction.
func (p *Parser) Diagnostics() []Diagnostic {
	return p.diagnostics
}

// Parse converts a single "<name> <value> [<timestamp>]" line.
func (p *Parser) Parse(line string) (*point.Point, error) {
	fields := strings.FieldsFunc(line, isSpace)
	if len(fields) != 2 && len(fields) != 3 {
		return nil, &FormatError{Line: line, Reason: ReasonMissingFields}
	}
	name := fields[0]

	tmpl := p.index.Match(name)
	if tmpl.err != nil {
		return nil, &FormatError{Line: line, Reason: tmpl.err.Error()}
	}

	measurement, field, tags, err := tmpl.apply(name, p.excludeLast)
	if err != nil {
		return nil, &FormatError{Line: line, Reason: err.Error()}
	}
	// Could not extract measurement, use the raw metric name
	if measurement == "" {
		measurement = name
	}

	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, &ValueError{Metric: name, Text: fields[1], Reason: ReasonInvalidValue, Err: err}
	}

	var timestamp int64
	if len(fields) == 3 {
		timestamp, err = parseTimestamp(fields[2])
		if err != nil {
			return nil, &ValueError{Metric: name, Text: fields[2], Reason: ReasonInvalidTime, Err: err}
		}
	} else {
		timestamp = p.now().UnixNano() / int64(time.Millisecond)
	}

	return point.NewPoint(measurement, tags, field, value, timestamp), nil
}

// isSpace accepts ASCII whitespace only; other Unicode spaces stay part of a token.
func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// parseTimestamp parses the token as a float and truncates it towards zero.
func parseTimestamp(s string) (int64, error) {
	ts, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return 0, errNonFinite
	}
	if ts < minTimestamp || ts >= maxTimestamp {
		return 0, errTimeOutOfRange
	}
	return int64(ts), nil
}
