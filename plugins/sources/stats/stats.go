package stats

import (
	"fmt"
	"strings"
	"time"

	gm "github.com/rcrowley/go-metrics"
	"github.com/wavefronthq/go-metrics-wavefront/reporting"

	"github.com/wavefronthq/graphite-parser/internal/point"
)

var percentiles = []float64{0.5, 0.75, 0.95, 0.99, 0.999}

func (src *InternalMetricsSource) internalStats(now time.Time) []*point.Point {
	ts := now.UnixNano() / int64(time.Millisecond)
	var points []*point.Point

	// update GC and memory stats before populating the map
	if src.runtimeStats {
		gm.CaptureRuntimeMemStatsOnce(src.registry)
	}
	if src.process != nil {
		src.process.capture()
	}

	src.registry.Each(func(key string, i interface{}) {
		name, tags := reporting.DecodeKey(key)
		switch metric := i.(type) {
		case gm.Counter:
			points = append(points, src.point(name, float64(metric.Count()), ts, tags))
		case gm.Gauge:
			points = append(points, src.point(name, float64(metric.Value()), ts, tags))
		case gm.GaugeFloat64:
			points = append(points, src.point(name, metric.Value(), ts, tags))
		case gm.Timer:
			timer := metric.Snapshot()
			points = append(points, src.addHisto(name, timer.Min(), timer.Max(), timer.Mean(),
				timer.Percentiles(percentiles), ts, tags)...)
			points = append(points, src.addRate(name, timer.Count(), timer.Rate1(), timer.RateMean(), ts, tags)...)
		case gm.Histogram:
			histo := metric.Snapshot()
			points = append(points, src.addHisto(name, histo.Min(), histo.Max(), histo.Mean(),
				histo.Percentiles(percentiles), ts, tags)...)
		case gm.Meter:
			meter := metric.Snapshot()
			points = append(points, src.addRate(name, meter.Count(), meter.Rate1(), meter.RateMean(), ts, tags)...)
		}
	})
	return points
}

func (src *InternalMetricsSource) addHisto(name string, min, max int64, mean float64, percentiles []float64, now int64, tags map[string]string) []*point.Point {
	// convert from nanoseconds to milliseconds
	var points []*point.Point
	points = append(points, src.point(combine(name, "duration.min"), float64(min)/1e6, now, tags))
	points = append(points, src.point(combine(name, "duration.max"), float64(max)/1e6, now, tags))
	points = append(points, src.point(combine(name, "duration.mean"), mean/1e6, now, tags))
	points = append(points, src.point(combine(name, "duration.median"), percentiles[0]/1e6, now, tags))
	points = append(points, src.point(combine(name, "duration.p75"), percentiles[1]/1e6, now, tags))
	points = append(points, src.point(combine(name, "duration.p95"), percentiles[2]/1e6, now, tags))
	points = append(points, src.point(combine(name, "duration.p99"), percentiles[3]/1e6, now, tags))
	points = append(points, src.point(combine(name, "duration.p999"), percentiles[4]/1e6, now, tags))
	return points
}

func (src *InternalMetricsSource) addRate(name string, count int64, m1, mean float64, now int64, tags map[string]string) []*point.Point {
	var points []*point.Point
	points = append(points, src.point(combine(name, "rate.count"), float64(count), now, tags))
	points = append(points, src.point(combine(name, "rate.m1"), m1, now, tags))
	points = append(points, src.point(combine(name, "rate.mean"), mean, now, tags))
	return points
}

func combine(prefix, name string) string {
	return fmt.Sprintf("%s.%s", prefix, name)
}

func (src *InternalMetricsSource) point(name string, value float64, ts int64, tags map[string]string) *point.Point {
	return point.NewPoint(src.prefix+strings.Replace(name, "_", ".", -1), src.buildTags(tags), "", value, ts)
}
