// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

type DiagnosticKind string

const (
	MixedWildcards       DiagnosticKind = "either 'field*' or 'measurement*' can be used in each template but not both together"
	MissingMeasurement   DiagnosticKind = "no measurement specified for template"
	FieldUsedTwice       DiagnosticKind = "'field' can only be used once in each template"
	MalformedDefaultTags DiagnosticKind = "malformed default tags"
)

// Diagnostic is a finding about a template that is accepted anyway.
type Diagnostic struct {
	Pattern  string
	Template string
	Kind     DiagnosticKind
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: pattern=%q template=%q", d.Kind, d.Pattern, d.Template)
}

// Validate inspects every template body. It never fails: problems are only reported.
func Validate(entries []Entry) []Diagnostic {
	var diags []Diagnostic
	for _, e := range entries {
		for _, kind := range check(ParseTemplate(e.Body)) {
			diags = append(diags, Diagnostic{Pattern: e.Pattern, Template: e.Body, Kind: kind})
		}
	}
	return diags
}

func check(t *Template) []DiagnosticKind {
	var (
		kinds                  []DiagnosticKind
		hasMeasurement         bool
		hasMeasurementWildcard bool
		hasFieldWildcard       bool
		fields                 int
	)
	for _, tag := range t.segments {
		switch tag {
		case tokenMeasurement:
			hasMeasurement = true
		case tokenMeasurementWildcard:
			hasMeasurementWildcard = true
		case tokenFieldWildcard:
			hasFieldWildcard = true
		case tokenField:
			fields++
		}
	}

	if hasFieldWildcard && hasMeasurementWildcard {
		kinds = append(kinds, MixedWildcards)
	}
	if !hasMeasurement && !hasMeasurementWildcard {
		kinds = append(kinds, MissingMeasurement)
	}
	if fields > 1 {
		kinds = append(kinds, FieldUsedTwice)
	}
	if t.err != nil {
		kinds = append(kinds, MalformedDefaultTags)
	}
	return kinds
}

// LogDiagnostics reports each diagnostic at error level.
func LogDiagnostics(diags []Diagnostic) {
	for _, d := range diags {
		log.WithFields(log.Fields{
			"pattern":  d.Pattern,
			"template": d.Template,
		}).Error(string(d.Kind))
	}
}
