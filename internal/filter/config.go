package filter

// Configuration for filtering parsed points.
// Metric names are matched against the point's measurement.
type Config struct {
	// List of glob pattern strings. Only metrics with names matching the allow list are reported.
	MetricAllowList []string `yaml:"metricAllowList" toml:"metric_allow_list"`

	// List of glob pattern strings. Metrics with names matching the deny list are dropped.
	MetricDenyList []string `yaml:"metricDenyList" toml:"metric_deny_list"`

	// Map of tag key to glob patterns. Only metrics with a matching tag value are reported.
	MetricTagAllowList map[string][]string `yaml:"metricTagAllowList" toml:"metric_tag_allow_list"`

	// Map of tag key to glob patterns. Metrics with a matching tag value are dropped.
	MetricTagDenyList map[string][]string `yaml:"metricTagDenyList" toml:"metric_tag_deny_list"`

	// List of glob pattern strings. Tags with matching keys will be included. All other tags will be excluded.
	TagInclude []string `yaml:"tagInclude" toml:"tag_include"`

	// List of glob pattern strings. Tags with matching keys will be excluded.
	TagExclude []string `yaml:"tagExclude" toml:"tag_exclude"`
}

func (cfg Config) Empty() bool {
	return len(cfg.MetricAllowList) == 0 && len(cfg.MetricDenyList) == 0 && len(cfg.MetricTagAllowList) == 0 &&
		len(cfg.MetricTagDenyList) == 0 && len(cfg.TagInclude) == 0 && len(cfg.TagExclude) == 0
}
