// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"fmt"
	"strings"
)

// DefaultTemplate is applied when no pattern matches a metric name.
const DefaultTemplate = "measurement*"

const (
	tokenMeasurement         = "measurement"
	tokenMeasurementWildcard = "measurement*"
	tokenField               = "field"
	tokenFieldWildcard       = "field*"
)

// Template is a parsed template body of the form
// <placeholder.sequence>[ <tag1>=<val1>[,<tag2>=<val2>...]]
type Template struct {
	body        string
	segments    []string
	defaultTags map[string]string

	// set when the default tag list is malformed; every line using the template fails with it
	err error
}

func ParseTemplate(body string) *Template {
	body = strings.TrimSpace(body)
	t := &Template{body: body, defaultTags: map[string]string{}}

	parts := strings.Fields(body)
	if len(parts) == 0 {
		t.segments = []string{""}
		return t
	}
	t.segments = strings.Split(parts[0], ".")

	last := parts[len(parts)-1]
	if !strings.Contains(last, "=") {
		return t
	}
	for _, kv := range strings.Split(last, ",") {
		pair := strings.Split(kv, "=")
		if len(pair) < 2 || pair[0] == "" || pair[1] == "" {
			t.err = fmt.Errorf("malformed default tag %q in template %q", kv, body)
			return t
		}
		t.defaultTags[pair[0]] = pair[1]
	}
	return t
}

// Body returns the trimmed template text as configured.
func (t *Template) Body() string {
	return t.body
}

func (t *Template) Segments() []string {
	out := make([]string, len(t.segments))
	copy(out, t.segments)
	return out
}

func (t *Template) DefaultTags() map[string]string {
	tags := make(map[string]string, len(t.defaultTags))
	for k, v := range t.defaultTags {
		tags[k] = v
	}
	return tags
}

// Err returns the error recorded while parsing the default tags, if any.
func (t *Template) Err() error {
	return t.err
}

// apply walks the template segments in lockstep with the dot-separated name.
// Segments past the end of the name are ignored. The wildcards consume the rest
// of the name; with excludeLast they stop before the final name segment.
func (t *Template) apply(name string, excludeLast bool) (measurement, field string, tags map[string]string, err error) {
	tags = t.DefaultTags()
	fields := strings.Split(name, ".")
	end := len(fields)
	if excludeLast {
		end--
	}

	var (
		parts     []string
		fieldSeen bool
	)

walk:
	for i, tag := range t.segments {
		if i >= len(fields) {
			break
		}
		switch tag {
		case tokenMeasurement:
			parts = append(parts, fields[i])
		case tokenField:
			if fieldSeen {
				return "", "", nil, errFieldReused
			}
			fieldSeen = true
			field = fields[i]
		case tokenFieldWildcard:
			field = strings.Join(rest(fields, i, end), "_")
			break walk
		case tokenMeasurementWildcard:
			parts = append(parts, rest(fields, i, end)...)
			break walk
		case "":
		default:
			tags[tag] = fields[i]
		}
	}
	return strings.Join(parts, "."), field, tags, nil
}

func rest(fields []string, from, to int) []string {
	if from >= to {
		return nil
	}
	return fields[from:to]
}
