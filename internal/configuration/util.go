// Copyright 2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package configuration

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

func GetStringValue(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func GetDurationValue(value, defaultValue time.Duration) time.Duration {
	if value != 0 {
		return value
	}
	return defaultValue
}

// Duration decodes "30s" style strings, or bare numbers as seconds, from both YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalTOML(b []byte) error {
	b = bytes.Trim(b, `'`)
	s := string(b)
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		d.Duration = 0
		return nil
	}
	if v, err := time.ParseDuration(s); err == nil {
		d.Duration = v
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		d.Duration = time.Duration(f * float64(time.Second))
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}
