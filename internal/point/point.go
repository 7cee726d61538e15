// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package point

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultField is the field key used when a template does not name a field.
const DefaultField = "value"

// Point is a single parsed metric: one measurement, its tags and exactly one field.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Time        int64
	Precision   time.Duration
}

func NewPoint(measurement string, tags map[string]string, field string, value float64, timestamp int64) *Point {
	if tags == nil {
		tags = map[string]string{}
	}
	if field == "" {
		field = DefaultField
	}
	return &Point{
		Measurement: measurement,
		Tags:        tags,
		Fields:      map[string]float64{field: value},
		Time:        timestamp,
		Precision:   time.Millisecond,
	}
}

// Field returns the single field of the point.
func (p *Point) Field() (string, float64) {
	for k, v := range p.Fields {
		return k, v
	}
	return "", 0
}

// MetricName flattens measurement and field into a dotted metric name.
// The default field is not appended.
func (p *Point) MetricName() string {
	field, _ := p.Field()
	if field == "" || field == DefaultField {
		return p.Measurement
	}
	return p.Measurement + "." + field
}

// Timestamp interprets Time in units of Precision.
func (p *Point) Timestamp() time.Time {
	precision := p.Precision
	if precision <= 0 {
		precision = time.Millisecond
	}
	return time.Unix(0, p.Time*int64(precision))
}

// AddTag adds a tag if it does not already exist
func (p *Point) AddTag(name, value string) {
	if p == nil {
		return
	}
	if p.Tags == nil {
		p.Tags = map[string]string{}
	}
	if _, exists := p.Tags[name]; !exists {
		p.Tags[name] = value
	}
}

// AddTags adds any tags that do not already exist
func (p *Point) AddTags(tags map[string]string) {
	for name, value := range tags {
		p.AddTag(name, value)
	}
}

// CopyTags returns a copy of the tags that callers may mutate freely.
func (p *Point) CopyTags() map[string]string {
	tags := make(map[string]string, len(p.Tags))
	for k, v := range p.Tags {
		tags[k] = v
	}
	return tags
}

// Clone returns a deep copy of the point.
func (p *Point) Clone() *Point {
	if p == nil {
		return nil
	}
	fields := make(map[string]float64, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	return &Point{
		Measurement: p.Measurement,
		Tags:        p.CopyTags(),
		Fields:      fields,
		Time:        p.Time,
		Precision:   p.Precision,
	}
}

func (p *Point) FilterTags(pred func(string) bool) {
	for name := range p.Tags {
		if !pred(name) {
			delete(p.Tags, name)
		}
	}
}

func (p *Point) String() string {
	names := make([]string, 0, len(p.Tags))
	for name := range p.Tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var tags strings.Builder
	for i, name := range names {
		if i > 0 {
			tags.WriteString(",")
		}
		tags.WriteString(name + "=" + p.Tags[name])
	}
	field, value := p.Field()
	return fmt.Sprintf("Point{measurement=%q tags={%s} fields={%s=%g} time=%d precision=%s}",
		p.Measurement, tags.String(), field, value, p.Time, p.Precision)
}
