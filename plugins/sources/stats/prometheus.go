package stats

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang/protobuf/proto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	gm "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"github.com/wavefronthq/go-metrics-wavefront/reporting"
)

const shutdownTimeout = 5 * time.Second

var promNameReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", " ", "_")

// WriteText renders the registry in the Prometheus text exposition format.
// Counters become counters, gauges become gauges and histograms and timers become summaries.
func WriteText(w io.Writer, registry gm.Registry) error {
	families := map[string]*dto.MetricFamily{}

	registry.Each(func(key string, i interface{}) {
		name, tags := reporting.DecodeKey(key)
		name = promNameReplacer.Replace(name)

		var m *dto.Metric
		var metricType dto.MetricType
		switch metric := i.(type) {
		case gm.Counter:
			metricType = dto.MetricType_COUNTER
			m = &dto.Metric{Counter: &dto.Counter{Value: proto.Float64(float64(metric.Count()))}}
		case gm.Gauge:
			metricType = dto.MetricType_GAUGE
			m = &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(float64(metric.Value()))}}
		case gm.GaugeFloat64:
			metricType = dto.MetricType_GAUGE
			m = &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(metric.Value())}}
		case gm.Timer:
			t := metric.Snapshot()
			metricType = dto.MetricType_SUMMARY
			m = &dto.Metric{Summary: summary(t.Count(), t.Sum(), t.Percentiles(percentiles))}
		case gm.Histogram:
			h := metric.Snapshot()
			metricType = dto.MetricType_SUMMARY
			m = &dto.Metric{Summary: summary(h.Count(), h.Sum(), h.Percentiles(percentiles))}
		default:
			return
		}
		m.Label = labels(tags)

		family, ok := families[name]
		if !ok {
			family = &dto.MetricFamily{Name: proto.String(name), Type: metricType.Enum()}
			families[name] = family
		}
		if family.GetType() != metricType {
			log.WithField("name", name).Debug("skipping metric with conflicting type")
			return
		}
		family.Metric = append(family.Metric, m)
	})

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := expfmt.MetricFamilyToText(w, families[name]); err != nil {
			return err
		}
	}
	return nil
}

func summary(count, sum int64, values []float64) *dto.Summary {
	s := &dto.Summary{
		SampleCount: proto.Uint64(uint64(count)),
		SampleSum:   proto.Float64(float64(sum)),
	}
	for i, q := range percentiles {
		s.Quantile = append(s.Quantile, &dto.Quantile{
			Quantile: proto.Float64(q),
			Value:    proto.Float64(values[i]),
		})
	}
	return s
}

func labels(tags map[string]string) []*dto.LabelPair {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]*dto.LabelPair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, &dto.LabelPair{
			Name:  proto.String(promNameReplacer.Replace(name)),
			Value: proto.String(tags[name]),
		})
	}
	return pairs
}

// Handler serves the registry in the Prometheus text format.
func Handler(registry gm.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.FmtText))
		if err := WriteText(w, registry); err != nil {
			log.Errorf("error writing metrics: %v", err)
		}
	})
}

// Serve exposes the default registry on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gm.DefaultRegistry))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("error stopping metrics server: %v", err)
		}
	}()

	log.WithField("address", addr).Info("serving internal metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
