package filter

import (
	log "github.com/sirupsen/logrus"

	"github.com/wavefronthq/graphite-parser/internal/point"
)

type Incrementer interface {
	Inc(int64)
}

func FromConfig(cfg Config) Filter {
	if cfg.Empty() {
		return nil
	}
	return NewGlobFilter(cfg)
}

// Apply returns nil when the point does not match f, incrementing filtered.
// Otherwise the point's tags are filtered and the point is returned.
func Apply(f Filter, filtered Incrementer, p *point.Point) *point.Point {
	if f == nil || p == nil {
		return p
	}
	if !f.MatchMetric(p.Measurement, p.Tags) {
		log.WithField("name", p.Measurement).Trace("dropping point")
		if filtered != nil {
			filtered.Inc(1)
		}
		return nil
	}
	p.FilterTags(f.MatchTag)
	return p
}
