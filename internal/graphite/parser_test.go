// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const org = "2c3c9f9e-73d9-4460-a668-047162ff1bac"

var testTemplates = map[string]string{
	`^testmetrics\..*`: ".organization_id.cluster_name.host_name.application_name.measurement.field",
	`^statsd\..*`:      ".organization_id.cluster_name.host_name.measurement.field",
	`^app\..*`:         "measurement.field*",
	`^mixed\..*`:       "measurement*.field*",
	`^host\..*`:        ".host.field",
	`^dup\..*`:         "measurement.field.field",
	`^tagged\..*`:      "measurement.host region=us-west,zone=1a",
	`^broken\..*`:      "measurement.host region=us,zone",
}

var fixedNow = time.Unix(1600000000, 123000000)

func newTestParser(t *testing.T, opts ...Option) *Parser {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	p, err := NewParser(testTemplates, opts...)
	require.NoError(t, err)
	return p
}

func TestParse(t *testing.T) {
	parser := newTestParser(t)

	tests := []struct {
		line        string
		measurement string
		tags        map[string]string
		fields      map[string]float64
		time        int64
	}{
		{
			line:        "testmetrics." + org + ".Site1.host-249.metrics_manager.linus_state.serviceState 0 1459513562\n",
			measurement: "linus_state",
			tags: map[string]string{
				"organization_id":  org,
				"cluster_name":     "Site1",
				"host_name":        "host-249",
				"application_name": "metrics_manager",
			},
			fields: map[string]float64{"serviceState": 0},
			time:   1459513562,
		},
		{
			line:        "testmetrics." + org + ".Bangalore-Site2.sx-controller-28_xyz_com.metrics_manager.linus_media.activeMediaCount 4 1459513317\n",
			measurement: "linus_media",
			tags: map[string]string{
				"organization_id":  org,
				"cluster_name":     "Bangalore-Site2",
				"host_name":        "sx-controller-28_xyz_com",
				"application_name": "metrics_manager",
			},
			fields: map[string]float64{"activeMediaCount": 4},
			time:   1459513317,
		},
		{
			line:        "statsd." + org + ".Bangalore-Site3.host-247_xyz_com.media_agent.cpu_overload 1 1459845230\n",
			measurement: "media_agent",
			tags: map[string]string{
				"organization_id": org,
				"cluster_name":    "Bangalore-Site3",
				"host_name":       "host-247_xyz_com",
			},
			fields: map[string]float64{"cpu_overload": 1},
			time:   1459845230,
		},
		{
			line:        "testmetrics." + org + ".Bangalore-Site4.host-246_xyz_com.linus.cpu_usage.percent 10.3839416610000000 1459513562\n",
			measurement: "cpu_usage",
			tags: map[string]string{
				"organization_id":  org,
				"cluster_name":     "Bangalore-Site4",
				"host_name":        "host-246_xyz_com",
				"application_name": "linus",
			},
			fields: map[string]float64{"percent": 10.383941661},
			time:   1459513562,
		},
		{
			line:        "app.cpu.user.percent 5 1459513562",
			measurement: "app",
			tags:        map[string]string{},
			fields:      map[string]float64{"cpu_user_percent": 5},
			time:        1459513562,
		},
		{
			line:        "tagged.web01 1 1459513562",
			measurement: "tagged",
			tags:        map[string]string{"host": "web01", "region": "us-west", "zone": "1a"},
			fields:      map[string]float64{"value": 1},
			time:        1459513562,
		},
		{
			line:        "host.web01.load 3 1459513562",
			measurement: "host.web01.load",
			tags:        map[string]string{"host": "web01"},
			fields:      map[string]float64{"load": 3},
			time:        1459513562,
		},
		{
			line:        "mixed.a.b 1 1459513562",
			measurement: "mixed.a.b",
			tags:        map[string]string{},
			fields:      map[string]float64{"value": 1},
			time:        1459513562,
		},
		{
			line:        "TESTMETRICS.org1.SiteA.host-1.svc.state.up 1 1459513562",
			measurement: "state",
			tags: map[string]string{
				"organization_id":  "org1",
				"cluster_name":     "SiteA",
				"host_name":        "host-1",
				"application_name": "svc",
			},
			fields: map[string]float64{"up": 1},
			time:   1459513562,
		},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			p, err := parser.Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.measurement, p.Measurement)
			assert.Equal(t, tt.tags, p.Tags)
			assert.Equal(t, tt.fields, p.Fields)
			assert.Equal(t, tt.time, p.Time)
			assert.Equal(t, time.Millisecond, p.Precision)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	line := "testmetrics.org1.SiteA.host-1.svc.linus_state.serviceState 0 1459513562"

	t.Run("leading empty segment skips the prefix", func(t *testing.T) {
		parser, err := NewParser(map[string]string{
			`^testmetrics\..*`: ".organization_id.cluster_name.host_name.application_name.measurement*",
		})
		require.NoError(t, err)

		p, err := parser.Parse(line)
		require.NoError(t, err)
		assert.Equal(t, "linus_state.serviceState", p.Measurement)
		assert.Equal(t, map[string]string{
			"organization_id":  "org1",
			"cluster_name":     "SiteA",
			"host_name":        "host-1",
			"application_name": "svc",
		}, p.Tags)
		assert.Equal(t, map[string]float64{"value": 0}, p.Fields)
		assert.Equal(t, int64(1459513562), p.Time)
	})

	t.Run("first segment is assigned to the first tag", func(t *testing.T) {
		parser, err := NewParser(map[string]string{
			`^testmetrics\..*`: "organization_id.cluster_name.host_name.application_name.measurement*",
		})
		require.NoError(t, err)

		p, err := parser.Parse(line)
		require.NoError(t, err)
		assert.Equal(t, "svc.linus_state.serviceState", p.Measurement)
		assert.Equal(t, map[string]string{
			"organization_id":  "testmetrics",
			"cluster_name":     "org1",
			"host_name":        "SiteA",
			"application_name": "host-1",
		}, p.Tags)
	})
}

func TestFilterMatchDefault(t *testing.T) {
	parser := newTestParser(t)

	p, err := parser.Parse("cpu 50.55 141997247825")
	require.NoError(t, err)
	assert.Equal(t, "cpu", p.Measurement)
	assert.Empty(t, p.Tags)
	assert.Equal(t, map[string]float64{"value": 50.55}, p.Fields)
	assert.Equal(t, int64(141997247825), p.Time)

	p, err = parser.Parse("servers.localhost.cpu 1 10")
	require.NoError(t, err)
	assert.Equal(t, "servers.localhost.cpu", p.Measurement)
	assert.Empty(t, p.Tags)
}

func TestLegacyWildcardRange(t *testing.T) {
	parser := newTestParser(t, WithLegacyWildcardRange())

	p, err := parser.Parse("servers.localhost.cpu 1 10")
	require.NoError(t, err)
	assert.Equal(t, "servers.localhost", p.Measurement)

	// nothing left for the measurement, fall back to the raw name
	p, err = parser.Parse("cpu 1 10")
	require.NoError(t, err)
	assert.Equal(t, "cpu", p.Measurement)

	p, err = parser.Parse("app.cpu.user.percent 5 10")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"cpu_user": 5}, p.Fields)
}

func TestParseNoTimestamp(t *testing.T) {
	parser := newTestParser(t)

	p, err := parser.Parse("cpu 50.55 ")
	require.NoError(t, err)
	assert.Equal(t, "cpu", p.Measurement)
	assert.Empty(t, p.Tags)
	assert.Equal(t, map[string]float64{"value": 50.55}, p.Fields)
	assert.Equal(t, int64(1600000000123), p.Time)
}

func TestParseNoTimestampUsesWallClock(t *testing.T) {
	parser, err := NewParser(nil)
	require.NoError(t, err)

	before := time.Now().UnixNano() / int64(time.Millisecond)
	p, err := parser.Parse("cpu 50.55")
	after := time.Now().UnixNano() / int64(time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Time, before)
	assert.LessOrEqual(t, p.Time, after)
}

func TestParseTimestampTruncation(t *testing.T) {
	parser := newTestParser(t)

	tests := map[string]int64{
		"cpu 1 1459513562.987": 1459513562,
		"cpu 1 1419972457825":  1419972457825,
		"cpu 1 -1.5":           -1,
		"cpu 1 1.4e9":          1400000000,
	}
	for line, expected := range tests {
		p, err := parser.Parse(line)
		require.NoError(t, err, line)
		assert.Equal(t, expected, p.Time, line)
	}
}

func TestParseMissingMetricFieldError(t *testing.T) {
	parser := newTestParser(t)

	for _, line := range []string{"1419972457825", "", "   ", "cpu 1 2 3"} {
		p, err := parser.Parse(line)
		assert.Nil(t, p)
		require.Error(t, err)
		assert.True(t, IsFormatError(err), line)

		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, ReasonMissingFields, fe.Reason)
		assert.Equal(t, line, fe.Line)
	}
}

func TestParseSplitsOnASCIIWhitespaceOnly(t *testing.T) {
	parser := newTestParser(t)

	p, err := parser.Parse("cpu\u00a01")
	assert.Nil(t, p)
	assert.True(t, IsFormatError(err))

	p, err = parser.Parse("cpu\t1\v1419972457825\r")
	require.NoError(t, err)
	assert.Equal(t, "cpu", p.Measurement)
	assert.Equal(t, int64(1419972457825), p.Time)
}

func TestParseInvalidValue(t *testing.T) {
	parser := newTestParser(t)

	for _, line := range []string{"cpu 50.554z 1419972457825", "cpu 50z 1419972457825"} {
		p, err := parser.Parse(line)
		assert.Nil(t, p)
		require.Error(t, err)

		var ve *ValueError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, ReasonInvalidValue, ve.Reason)
		assert.Equal(t, "cpu", ve.Metric)
		assert.NotNil(t, ve.Unwrap())
		assert.False(t, IsFormatError(err))
	}
}

func TestParseInvalidTime(t *testing.T) {
	parser := newTestParser(t)

	for _, line := range []string{"cpu 50.554 14199724z57825", "cpu 1 NaN", "cpu 1 +Inf", "cpu 1 1e30"} {
		p, err := parser.Parse(line)
		assert.Nil(t, p)

		var ve *ValueError
		require.ErrorAs(t, err, &ve, line)
		assert.Equal(t, ReasonInvalidTime, ve.Reason)
		assert.True(t, IsValueError(err))
	}
}

func TestParseFieldUsedTwice(t *testing.T) {
	parser := newTestParser(t)

	for i := 0; i < 3; i++ {
		p, err := parser.Parse("dup.a.b 1 1459513562")
		assert.Nil(t, p)

		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, ReasonFieldReused, fe.Reason)
	}
}

func TestParseMalformedDefaultTags(t *testing.T) {
	parser := newTestParser(t)

	p, err := parser.Parse("broken.web01 1 1459513562")
	assert.Nil(t, p)
	assert.True(t, IsFormatError(err))
}

func TestNewParserKeepsInvalidTemplates(t *testing.T) {
	parser := newTestParser(t)

	assert.Equal(t, len(testTemplates), parser.Index().Len())
	assert.ElementsMatch(t, []Diagnostic{
		{Pattern: `^mixed\..*`, Template: "measurement*.field*", Kind: MixedWildcards},
		{Pattern: `^host\..*`, Template: ".host.field", Kind: MissingMeasurement},
		{Pattern: `^dup\..*`, Template: "measurement.field.field", Kind: FieldUsedTwice},
		{Pattern: `^broken\..*`, Template: "measurement.host region=us,zone", Kind: MalformedDefaultTags},
	}, parser.Diagnostics())

	// a template flagged at construction still parses
	p, err := parser.Parse("mixed.a.b 1 1")
	require.NoError(t, err)
	assert.Equal(t, "mixed.a.b", p.Measurement)
}

func TestNewParserInvalidPattern(t *testing.T) {
	_, err := NewParser(map[string]string{"(": "measurement"})
	assert.Error(t, err)
}

func TestParseConcurrently(t *testing.T) {
	parser := newTestParser(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				line := fmt.Sprintf("statsd.org%d.site.host%d.agent.load %d 1459513562", g, i, i)
				p, err := parser.Parse(line)
				if assert.NoError(t, err) {
					assert.Equal(t, "agent", p.Measurement)
					assert.Equal(t, fmt.Sprintf("host%d", i), p.Tags["host_name"])
					assert.Equal(t, float64(i), p.Fields["load"])
				}
			}
		}(g)
	}
	wg.Wait()
}
