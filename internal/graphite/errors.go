// Copyright 2021 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"errors"
	"fmt"
)

const (
	ReasonMissingFields = "missing required fields"
	ReasonFieldReused   = "field used more than once"
	ReasonInvalidValue  = "invalid field value"
	ReasonInvalidTime   = "invalid timestamp"
)

var (
	errFieldReused    = errors.New(ReasonFieldReused)
	errNonFinite      = errors.New("timestamp is not a finite number")
	errTimeOutOfRange = errors.New("timestamp out of range")
)

// FormatError reports a structural problem with a line or with the template selected for it.
type FormatError struct {
	Line   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %q", e.Reason, e.Line)
}

// ValueError reports a value or timestamp token that is not a number.
type ValueError struct {
	Metric string
	Text   string
	Reason string
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s for metric %q: %q: %v", e.Reason, e.Metric, e.Text, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsValueError reports whether err is or wraps a *ValueError.
func IsValueError(err error) bool {
	var ve *ValueError
	return errors.As(err, &ve)
}
