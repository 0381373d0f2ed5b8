package routerd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Shopify/ghostrouter"
	"github.com/golang/snappy"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Action is implemented by every built-in action. Built-ins serve both
// handler contracts and are wrapped according to the kind declared by the
// schema they are bound in.
type Action interface {
	ghostrouter.RowHandler
	ghostrouter.EventTypeHandler
	Close() error
}

// Message is the JSON document sent by the http and kafka actions. Type is
// empty for row actions.
type Message struct {
	Schema string            `json:"schema"`
	Table  string            `json:"table"`
	Type   string            `json:"type,omitempty"`
	Fields map[string]string `json:"fields"`
}

func NewMessage(eventType string, row ghostrouter.Row) Message {
	return Message{
		Schema: row.Schema,
		Table:  row.Table,
		Type:   eventType,
		Fields: row.Values(),
	}
}

type LogAction struct {
	Level logrus.Level

	logger *logrus.Entry
}

func NewLogAction(name, level string) (*LogAction, error) {
	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		lvl, err = logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
	}

	return &LogAction{
		Level:  lvl,
		logger: logrus.WithFields(logrus.Fields{"tag": "log_action", "action": name}),
	}, nil
}

func (a *LogAction) HandleRow(row ghostrouter.Row) error {
	a.log("", row)
	return nil
}

func (a *LogAction) HandleEvent(eventType ghostrouter.EventType, row ghostrouter.Row) error {
	a.log(eventType.String(), row)
	return nil
}

func (a *LogAction) log(eventType string, row ghostrouter.Row) {
	entry := a.logger.WithFields(logrus.Fields{
		"schema": row.Schema,
		"table":  row.Table,
		"fields": row.Values(),
	})
	if eventType != "" {
		entry = entry.WithField("type", eventType)
	}
	entry.Log(a.Level, "row change")
}

func (a *LogAction) Close() error {
	return nil
}

type HTTPAction struct {
	URI    string
	Client *http.Client
}

func NewHTTPAction(uri string, timeout time.Duration) *HTTPAction {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPAction{
		URI:    uri,
		Client: &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAction) HandleRow(row ghostrouter.Row) error {
	return ghostrouter.PostJSON(a.Client, a.URI, NewMessage("", row))
}

func (a *HTTPAction) HandleEvent(eventType ghostrouter.EventType, row ghostrouter.Row) error {
	return ghostrouter.PostJSON(a.Client, a.URI, NewMessage(eventType.String(), row))
}

func (a *HTTPAction) Close() error {
	a.Client.CloseIdleConnections()
	return nil
}

// MessageWriter is the subset of *kafka.Writer used by KafkaAction.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAction publishes one message per row, keyed by schema.table so that
// changes of a table stay ordered within a partition.
type KafkaAction struct {
	Topic    string
	Compress bool
	Timeout  time.Duration

	writer MessageWriter
}

func NewKafkaAction(brokers []string, topic string, compress bool) (*KafkaAction, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka action requires at least one broker address")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return NewKafkaActionWithWriter(writer, topic, compress), nil
}

func NewKafkaActionWithWriter(writer MessageWriter, topic string, compress bool) *KafkaAction {
	return &KafkaAction{
		Topic:    topic,
		Compress: compress,
		Timeout:  DefaultHTTPTimeout,
		writer:   writer,
	}
}

func (a *KafkaAction) HandleRow(row ghostrouter.Row) error {
	return a.publish(NewMessage("", row))
}

func (a *KafkaAction) HandleEvent(eventType ghostrouter.EventType, row ghostrouter.Row) error {
	return a.publish(NewMessage(eventType.String(), row))
}

func (a *KafkaAction) publish(message Message) error {
	msg, err := a.Encode(message)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
	defer cancel()
	return a.writer.WriteMessages(ctx, msg)
}

// Encode builds the kafka message for message. Compressed payloads carry a
// content-encoding header.
func (a *KafkaAction) Encode(message Message) (kafka.Message, error) {
	value, err := json.Marshal(message)
	if err != nil {
		return kafka.Message{}, err
	}

	msg := kafka.Message{
		Topic: a.Topic,
		Key:   []byte(message.Schema + "." + message.Table),
	}

	if message.Type != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "event-type", Value: []byte(message.Type)})
	}

	if a.Compress {
		value = snappy.Encode(nil, value)
		msg.Headers = append(msg.Headers, kafka.Header{Key: "content-encoding", Value: []byte("snappy")})
	}
	msg.Value = value

	return msg, nil
}

func (a *KafkaAction) Close() error {
	return a.writer.Close()
}

// BuildActions instantiates the configured actions. Names are matched
// case-insensitively, as viper lowercases map keys.
func BuildActions(configs map[string]ActionConfig) (map[string]Action, error) {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	actions := make(map[string]Action, len(configs))
	for _, name := range names {
		config := configs[name]
		if err := config.Validate(); err != nil {
			CloseActions(actions)
			return nil, fmt.Errorf("action %s: %w", name, err)
		}

		var action Action
		var err error
		switch config.Type {
		case "log":
			action, err = NewLogAction(name, config.Level)
		case "http":
			action = NewHTTPAction(config.URI, config.Timeout)
		case "kafka":
			action, err = NewKafkaAction(config.Brokers, config.Topic, config.Compress)
		}
		if err != nil {
			CloseActions(actions)
			return nil, fmt.Errorf("action %s: %w", name, err)
		}

		actions[strings.ToLower(name)] = action
	}

	return actions, nil
}

func CloseActions(actions map[string]Action) {
	for name, action := range actions {
		if err := action.Close(); err != nil {
			logrus.WithField("tag", "routerd").WithError(err).WithField("action", name).Warn("failed to close action")
		}
	}
}
