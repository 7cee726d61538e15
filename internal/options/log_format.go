package options

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

type LogFormat string

const (
	TextLogFormat LogFormat = "text"
	JSONLogFormat LogFormat = "json"
)

var InvalidLogFormatErr = errors.New("--log-format can only be text or json")

func NewLogFormat(value string) (LogFormat, error) {
	switch value {
	case "text":
		return TextLogFormat, nil
	case "json":
		return JSONLogFormat, nil
	}
	return "", InvalidLogFormatErr
}

func (f LogFormat) String() string {
	return string(f)
}

func (f *LogFormat) Set(value string) error {
	var err error
	*f, err = NewLogFormat(value)
	return err
}

func (f LogFormat) Type() string {
	return "string"
}

func (f LogFormat) Formatter() log.Formatter {
	if f == JSONLogFormat {
		return &log.JSONFormatter{}
	}
	return &log.TextFormatter{FullTimestamp: true}
}
