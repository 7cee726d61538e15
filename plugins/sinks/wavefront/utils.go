// Copyright 2018-2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package wavefront

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	emptyReason    = "they were empty"
	dedupeReason   = "there were too many tags so we removed tags with duplicate tag values"
	overflowReason = "there were too many tags so we removed the last tags by name"
)

// cleanTags removes empty tags, then tags with duplicate values and finally the
// tags sorting last by name until at most maxCapacity remain. It returns the removed
// tag names by their reason for removal.
func cleanTags(tags map[string]string, maxCapacity int) map[string][]string {
	removedReasons := map[string][]string{}
	removedReasons[emptyReason] = removeEmptyTags(tags)
	if len(tags) > maxCapacity {
		removedReasons[dedupeReason] = dedupeTagValues(tags)
	}
	if len(tags) > maxCapacity {
		removedReasons[overflowReason] = removeOverflowTags(tags, maxCapacity)
	}
	return removedReasons
}

func logTagCleaningReasons(metricName string, reasons map[string][]string) {
	for reason, tagNames := range reasons {
		if len(tagNames) == 0 {
			continue
		}
		log.Debugf(
			"the following tags were removed from %s because %s: %s",
			metricName, reason, strings.Join(tagNames, ", "),
		)
	}
}

const minDedupeTagValueLen = 5

func dedupeTagValues(tags map[string]string) []string {
	var removedTags []string
	invertedTags := map[string]string{} // tag value -> tag name
	for _, name := range sortKeys(tags) {
		value := tags[name]
		if len(value) < minDedupeTagValueLen {
			continue
		}
		if len(invertedTags[value]) == 0 {
			invertedTags[value] = name
		} else if isWinningName(name, invertedTags[value]) {
			removedTags = append(removedTags, invertedTags[value])
			delete(tags, invertedTags[value])
			invertedTags[value] = name
		} else {
			removedTags = append(removedTags, name)
			delete(tags, name)
		}
	}
	return removedTags
}

func isWinningName(name string, prevWinner string) bool {
	return len(name) < len(prevWinner) || (len(name) == len(prevWinner) && name < prevWinner)
}

func isAnEmptyTag(value string) bool {
	if value == "" || value == "/" || value == "-" {
		return true
	}
	return false
}

func removeEmptyTags(tags map[string]string) []string {
	var removed []string
	for name, value := range tags {
		if isAnEmptyTag(value) {
			removed = append(removed, name)
			delete(tags, name)
		}
	}
	return removed
}

func removeOverflowTags(tags map[string]string, maxCapacity int) []string {
	names := sortKeys(tags)
	if len(names) <= maxCapacity {
		return nil
	}
	removed := names[maxCapacity:]
	for _, name := range removed {
		delete(tags, name)
	}
	return removed
}

func sortKeys(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
