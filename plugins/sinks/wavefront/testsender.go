package wavefront

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/wavefronthq/wavefront-sdk-go/event"
	"github.com/wavefronthq/wavefront-sdk-go/histogram"
	"github.com/wavefronthq/wavefront-sdk-go/senders"
)

// TestSender records metric lines instead of sending them.
type TestSender struct {
	testReceivedLines []string
	mutex             sync.Mutex
}

func NewTestSender() *TestSender {
	return &TestSender{}
}

func (t *TestSender) SendMetric(name string, value float64, ts int64, source string, tags map[string]string) error {
	line := fmt.Sprintf("Metric: %s %f %d source=%q %s", name, value, ts, source, orderedTagString(tags))

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.testReceivedLines = append(t.testReceivedLines, line)
	log.Infoln(line)

	return nil
}

// GetReceivedLines returns every recorded line, one per metric.
func (t *TestSender) GetReceivedLines() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return strings.Join(t.testReceivedLines, "\n")
}

func (t *TestSender) SendEvent(name string, startMillis, endMillis int64, source string, tags map[string]string, setters ...event.Option) error {
	return nil
}

func orderedTagString(tags map[string]string) string {
	var sb strings.Builder
	for _, tagName := range sortKeys(tags) {
		sb.WriteString(tagName + "=\"" + tags[tagName] + "\" ")
	}
	return strings.TrimSpace(sb.String())
}

func (t *TestSender) SendDeltaCounter(name string, value float64, source string, tags map[string]string) error {
	return t.SendMetric("∆"+name, value, 0, source, tags)
}

func (t *TestSender) SendDistribution(name string, centroids []histogram.Centroid, hgs map[histogram.Granularity]bool, ts int64, source string, tags map[string]string) error {
	return nil
}

func (t *TestSender) SendSpan(name string, startMillis, durationMillis int64, source, traceId, spanId string, parents, followsFrom []string, tags []senders.SpanTag, spanLogs []senders.SpanLog) error {
	return nil
}

func (t *TestSender) Flush() error {
	return nil
}

func (t *TestSender) GetFailureCount() int64 {
	return 0
}

func (t *TestSender) Start() {
}

func (t *TestSender) Close() {
}
