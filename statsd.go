package ghostrouter

import (
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/sirupsen/logrus"
)

// InitializeMetrics replaces the global metrics with one whose sink is
// drained into a statsd client. An empty address leaves metrics disabled.
func InitializeMetrics(prefix, address string, queueSize int, defaultTags []MetricTag) (*Metrics, error) {
	if address == "" {
		logrus.Debug("statsd metrics not configured")
		return metrics, nil
	}

	client, err := statsd.New(address)
	if err != nil {
		return nil, err
	}

	if queueSize <= 0 {
		queueSize = 1024
	}

	m := SetGlobalMetrics(&Metrics{
		Prefix:      prefix,
		DefaultTags: defaultTags,
		Sink:        make(chan interface{}, queueSize),
	})

	m.AddConsumer()
	go consumeMetrics(m, client, m.Sink)

	return m, nil
}

func consumeMetrics(m *Metrics, client *statsd.Client, sink chan interface{}) {
	defer m.DoneConsumer()
	defer client.Close()

	for metric := range sink {
		switch metric := metric.(type) {
		case CountMetric:
			handleErr(client.Count(metric.Key, metric.Value, tagsToStrings(metric.Tags), metric.SampleRate), metric)
		case GaugeMetric:
			handleErr(client.Gauge(metric.Key, metric.Value, tagsToStrings(metric.Tags), metric.SampleRate), metric)
		case TimerMetric:
			handleErr(client.Timing(metric.Key, metric.Value, tagsToStrings(metric.Tags), metric.SampleRate), metric)
		}
	}
}

func tagsToStrings(tags []MetricTag) []string {
	strs := make([]string, len(tags))
	for i, tag := range tags {
		if tag.Value != "" {
			strs[i] = fmt.Sprintf("%s:%s", tag.Name, tag.Value)
		} else {
			strs[i] = tag.Name
		}
	}
	return strs
}

func handleErr(err error, metric interface{}) {
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"error":  err,
			"metric": metric,
		}).Warnln("could not emit statsd metric")
	}
}
