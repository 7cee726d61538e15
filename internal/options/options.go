// Copyright 2018-2019 VMware, Inc. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package options

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

var InputAndListenErr = errors.New("cannot set --input with --listen")

type ParserRunOptions struct {
	Version       bool
	ConfigFile    string
	TemplatesFile string
	ListenAddress string
	Input         string
	LogLevel      string
	LogFormat     LogFormat
	MaxProcs      int
}

func NewParserRunOptions() *ParserRunOptions {
	return &ParserRunOptions{
		LogFormat: TextLogFormat,
	}
}

func (opts *ParserRunOptions) Parse(fs *pflag.FlagSet, args []string) error {
	fs.BoolVar(&opts.Version, "version", false, "print version info and exit")
	fs.StringVar(&opts.ConfigFile, "config-file", "", "optional configuration file (yaml or toml)")
	fs.StringVar(&opts.TemplatesFile, "templates-file", "", "optional templates file (json or yaml), overrides templatesFile in the configuration")
	fs.StringVar(&opts.ListenAddress, "listen", "", "address for the plaintext listener, overrides listener.address in the configuration")
	fs.StringVar(&opts.Input, "input", "", "parse lines from a file instead of listening, - for stdin")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "one of info, debug or trace")
	fs.Var(&opts.LogFormat, "log-format", "the log format (text, json)")
	fs.IntVar(&opts.MaxProcs, "max-procs", 0, "max number of CPUs that can be used simultaneously. Less than 1 for default (number of cores)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.Changed("input") && fs.Changed("listen") {
		return InputAndListenErr
	}
	return nil
}

func Parse() *ParserRunOptions {
	opts := NewParserRunOptions()
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	if err := opts.Parse(fs, os.Args[1:]); err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return opts
}
