package ghostrouter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var metrics = &Metrics{Prefix: "ghostrouter"}

type MetricTag struct {
	Name  string
	Value string
}

type MetricBase struct {
	Key        string
	Tags       []MetricTag
	SampleRate float64
}

type CountMetric struct {
	MetricBase
	Value int64
}

type GaugeMetric struct {
	MetricBase
	Value float64
}

type TimerMetric struct {
	MetricBase
	Value time.Duration
}

// Metrics hands metrics to whatever drains Sink. Without a Sink every call
// is a no-op, and a full Sink drops the metric rather than block routing.
type Metrics struct {
	Prefix      string
	DefaultTags []MetricTag
	Sink        chan interface{}

	sinkMu      sync.RWMutex
	sinkPending sync.WaitGroup
	dropped     atomic.Uint64
}

func SetGlobalMetrics(m *Metrics) *Metrics {
	metrics = m
	return metrics
}

func GlobalMetrics() *Metrics {
	return metrics
}

func (m *Metrics) Count(key string, value int64, tags []MetricTag, sampleRate float64) {
	m.sendMetric(CountMetric{MetricBase: m.base(key, tags, sampleRate), Value: value})
}

func (m *Metrics) Gauge(key string, value float64, tags []MetricTag, sampleRate float64) {
	m.sendMetric(GaugeMetric{MetricBase: m.base(key, tags, sampleRate), Value: value})
}

func (m *Metrics) Timer(key string, duration time.Duration, tags []MetricTag, sampleRate float64) {
	m.sendMetric(TimerMetric{MetricBase: m.base(key, tags, sampleRate), Value: duration})
}

// Measure times f and reports it as a timer.
func (m *Metrics) Measure(key string, tags []MetricTag, sampleRate float64, f func()) {
	start := time.Now()
	defer func() {
		m.Timer(key, time.Since(start), tags, sampleRate)
	}()
	f()
}

// Dropped is the number of metrics discarded because the sink was full.
func (m *Metrics) Dropped() uint64 {
	return m.dropped.Load()
}

// AddConsumer and DoneConsumer bracket the goroutine draining Sink, so that
// StopAndFlush can wait for it.
func (m *Metrics) AddConsumer() {
	m.sinkPending.Add(1)
}

func (m *Metrics) DoneConsumer() {
	m.sinkPending.Done()
}

// StopAndFlush closes Sink and waits until consumers drained it. Metrics
// sent afterwards are ignored.
func (m *Metrics) StopAndFlush() {
	m.sinkMu.Lock()
	sink := m.Sink
	m.Sink = nil
	m.sinkMu.Unlock()

	if sink == nil {
		return
	}

	close(sink)
	m.sinkPending.Wait()
}

func (m *Metrics) sendMetric(metric interface{}) {
	m.sinkMu.RLock()
	defer m.sinkMu.RUnlock()

	if m.Sink == nil {
		return
	}

	select {
	case m.Sink <- metric:
	default:
		if m.dropped.Add(1)%1000 == 1 {
			logrus.WithField("tag", "metrics").
				WithField("dropped", m.dropped.Load()).
				Warn("metrics sink full, dropping metrics")
		}
	}
}

func (m *Metrics) base(key string, tags []MetricTag, sampleRate float64) MetricBase {
	if m.Prefix != "" {
		key = m.Prefix + "." + key
	}

	return MetricBase{
		Key:        key,
		Tags:       m.mergeWithDefaultTags(tags),
		SampleRate: sampleRate,
	}
}

// mergeWithDefaultTags appends the default tags not overridden by name.
func (m *Metrics) mergeWithDefaultTags(tags []MetricTag) []MetricTag {
	merged := make([]MetricTag, 0, len(tags)+len(m.DefaultTags))
	merged = append(merged, tags...)

	if len(m.DefaultTags) == 0 {
		return merged
	}

	names := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		names[tag.Name] = struct{}{}
	}
	for _, tag := range m.DefaultTags {
		if _, overridden := names[tag.Name]; !overridden {
			merged = append(merged, tag)
		}
	}

	return merged
}
