// Package influx writes parsed points as InfluxDB line protocol.
package influx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/influxdata/telegraf/metric"
	"github.com/influxdata/telegraf/plugins/serializers/influx"
	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/wavefronthq/graphite-parser/internal/configuration"
	"github.com/wavefronthq/graphite-parser/internal/filter"
	"github.com/wavefronthq/graphite-parser/internal/point"
)

const stdout = "-"

var (
	writtenPoints  gm.Counter
	errPoints      gm.Counter
	filteredPoints gm.Counter
)

func init() {
	writtenPoints = gm.GetOrRegisterCounter("influx.points.written.count", gm.DefaultRegistry)
	errPoints = gm.GetOrRegisterCounter("influx.points.errors.count", gm.DefaultRegistry)
	filteredPoints = gm.GetOrRegisterCounter("influx.points.filtered.count", gm.DefaultRegistry)
}

type InfluxSink struct {
	out        io.Writer
	closer     io.Closer
	prefix     string
	globalTags map[string]string
	filters    filter.Filter
	precision  time.Duration
	serializer *influx.Serializer
	mtx        sync.Mutex
}

// NewInfluxSink writes to cfg.Output, a file path or - for stdout.
func NewInfluxSink(cfg configuration.SinkConfig) (*InfluxSink, error) {
	output := configuration.GetStringValue(cfg.Output, stdout)
	if output == stdout {
		return NewInfluxWriterSink(cfg, os.Stdout), nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening influx output %s: %v", output, err)
	}
	sink := NewInfluxWriterSink(cfg, f)
	sink.closer = f
	return sink, nil
}

func NewInfluxWriterSink(cfg configuration.SinkConfig, w io.Writer) *InfluxSink {
	return &InfluxSink{
		out:        w,
		prefix:     cfg.Prefix,
		globalTags: cfg.Tags,
		filters:    filter.FromConfig(cfg.Filters),
		precision:  cfg.TimestampPrecision.Duration,
		serializer: influx.NewSerializer(),
	}
}

func (sink *InfluxSink) Name() string {
	return "influx_sink"
}

// Export writes one line. Points carry millisecond timestamps unless a precision is configured.
func (sink *InfluxSink) Export(p *point.Point) error {
	if p == nil {
		return nil
	}
	p.AddTags(sink.globalTags)
	p = filter.Apply(sink.filters, filteredPoints, p)
	if p == nil {
		return nil
	}

	if sink.precision > 0 {
		p.Precision = sink.precision
	}

	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	m, err := metric.New(sink.prefix+p.Measurement, p.Tags, fields, p.Timestamp())
	if err != nil {
		errPoints.Inc(1)
		return fmt.Errorf("error converting point %s: %v", p.Measurement, err)
	}
	line, err := sink.serializer.Serialize(m)
	if err != nil {
		errPoints.Inc(1)
		log.WithField("name", p.Measurement).Debugf("error serializing point: %v", err)
		return err
	}

	sink.mtx.Lock()
	defer sink.mtx.Unlock()
	if _, err := sink.out.Write(line); err != nil {
		errPoints.Inc(1)
		return err
	}
	writtenPoints.Inc(1)
	return nil
}

func (sink *InfluxSink) Stop() {
	if sink.closer == nil {
		return
	}
	if err := sink.closer.Close(); err != nil {
		log.Errorf("error closing influx output: %v", err)
	}
}
