// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Entry is a configured (pattern, template body) pair.
type Entry struct {
	Pattern string
	Body    string
}

type indexEntry struct {
	pattern  string
	matcher  *regexp.Regexp
	template *Template
}

// TemplateIndex selects the template for a metric name. It is immutable once
// built and safe for concurrent use.
type TemplateIndex struct {
	entries  []indexEntry
	fallback *Template
}

// NewTemplateIndex orders the templates longest pattern first, breaking ties
// lexicographically. It fails only on patterns that are not valid regular expressions.
func NewTemplateIndex(templates map[string]string) (*TemplateIndex, error) {
	entries := make([]indexEntry, 0, len(templates))
	for pattern, body := range templates {
		matcher, err := compilePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid template pattern %q: %v", pattern, err)
		}
		entries = append(entries, indexEntry{
			pattern:  pattern,
			matcher:  matcher,
			template: ParseTemplate(body),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return patternLess(entries[i].pattern, entries[j].pattern)
	})

	return &TemplateIndex{
		entries:  entries,
		fallback: ParseTemplate(DefaultTemplate),
	}, nil
}

// patternLess is the total order used for matching: longer patterns first, then lexicographic.
func patternLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

// compilePattern anchors the pattern so it has to match the whole name, ignoring case.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)^(?:" + strings.TrimSpace(pattern) + ")$")
}

// Match returns the parsed template of the first matching entry, or the default template.
func (idx *TemplateIndex) Match(name string) *Template {
	for _, e := range idx.entries {
		if e.matcher.MatchString(name) {
			return e.template
		}
	}
	return idx.fallback
}

// Select returns the trimmed template body that applies to name.
func (idx *TemplateIndex) Select(name string) string {
	return idx.Match(name).Body()
}

// Entries lists the configured templates in matching order.
func (idx *TemplateIndex) Entries() []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, Entry{Pattern: e.pattern, Body: e.template.Body()})
	}
	return out
}

func (idx *TemplateIndex) Len() int {
	return len(idx.entries)
}

// Validate reports template shape problems without rejecting anything.
func (idx *TemplateIndex) Validate() []Diagnostic {
	return Validate(idx.Entries())
}
