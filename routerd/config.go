package routerd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/ghostrouter"
	"github.com/spf13/viper"
)

const (
	DefaultServerBindAddr   = "127.0.0.1:8000"
	DefaultMaxActionRetries = 5
	DefaultActionRetrySleep = time.Second
	DefaultStatsdQueueSize  = 1024
	DefaultHTTPTimeout      = 10 * time.Second
)

type BinlogPosition struct {
	File string `mapstructure:"file"`
	Pos  uint32 `mapstructure:"pos"`
}

type StatsdConfig struct {
	Address   string   `mapstructure:"address"`
	QueueSize int      `mapstructure:"queue_size"`
	Tags      []string `mapstructure:"tags"`
}

// ActionConfig describes one named action. Type is log, http or kafka.
type ActionConfig struct {
	Type string `mapstructure:"type"`

	// log
	Level string `mapstructure:"level"`

	// http
	URI     string        `mapstructure:"uri"`
	Timeout time.Duration `mapstructure:"timeout"`

	// kafka
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	Compress bool     `mapstructure:"compress"`
}

// FieldConditionConfig is one predicate of a rule. Op is eq, in or range.
// Reference values are written in the same text form as column values.
type FieldConditionConfig struct {
	Field  string        `mapstructure:"field"`
	Op     string        `mapstructure:"op"`
	Type   string        `mapstructure:"type"`
	Value  interface{}   `mapstructure:"value"`
	Values []interface{} `mapstructure:"values"`
	Gt     interface{}   `mapstructure:"gt"`
	Gte    interface{}   `mapstructure:"gte"`
	Lt     interface{}   `mapstructure:"lt"`
	Lte    interface{}   `mapstructure:"lte"`
	Not    bool          `mapstructure:"not"`
}

type ConditionConfig struct {
	Must    []FieldConditionConfig `mapstructure:"must"`
	Should  []FieldConditionConfig `mapstructure:"should"`
	MustNot []FieldConditionConfig `mapstructure:"must_not"`
}

type TableConfig struct {
	Name        string           `mapstructure:"name"`
	Action      string           `mapstructure:"action"`
	Columns     []string         `mapstructure:"columns"`
	Forbid      []string         `mapstructure:"forbid"`
	SkipDeleted bool             `mapstructure:"skip_deleted"`
	Condition   *ConditionConfig `mapstructure:"condition"`
}

type SchemaConfig struct {
	Name       string        `mapstructure:"name"`
	ActionKind string        `mapstructure:"action_kind"`
	Tables     []TableConfig `mapstructure:"tables"`
}

type Config struct {
	Source     ghostrouter.DatabaseConfig `mapstructure:"source"`
	MyServerId uint32                     `mapstructure:"my_server_id"`

	// Streams from SHOW MASTER STATUS when unset.
	StartFromBinlogPosition *BinlogPosition `mapstructure:"start_from_binlog_position"`

	ServerBindAddr string       `mapstructure:"server_bind_addr"`
	Statsd         StatsdConfig `mapstructure:"statsd"`

	MaxActionRetries int           `mapstructure:"max_action_retries"`
	ActionRetrySleep time.Duration `mapstructure:"action_retry_sleep"`

	ErrorCallback ghostrouter.HTTPCallback `mapstructure:"error_callback"`

	Actions           map[string]ActionConfig                  `mapstructure:"actions"`
	Schemas           []SchemaConfig                           `mapstructure:"schemas"`
	CompressedColumns ghostrouter.TableColumnCompressionConfig `mapstructure:"compressed_columns"`
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("source.port", 3306)
	v.SetDefault("server_bind_addr", DefaultServerBindAddr)
	v.SetDefault("statsd.queue_size", DefaultStatsdQueueSize)
	v.SetDefault("max_action_retries", DefaultMaxActionRetries)
	v.SetDefault("action_retry_sleep", DefaultActionRetrySleep.String())

	v.SetEnvPrefix("GHOSTROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so env-only keys are bound
	// explicitly.
	for _, key := range []string{"source.host", "source.user", "source.pass", "statsd.address", "error_callback.uri"} {
		v.BindEnv(key)
	}

	return v
}

// LoadConfig reads the configuration file at path. Environment variables
// prefixed with GHOSTROUTER_ override file values.
func LoadConfig(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, nil
}

// LoadSchemas reads only the routing rules from path, for reloads.
func LoadSchemas(path string) ([]SchemaConfig, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return config.Schemas, nil
}

func (c *Config) ValidateConfig() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %s", err)
	}

	if c.StartFromBinlogPosition != nil && c.StartFromBinlogPosition.File == "" {
		return fmt.Errorf("start_from_binlog_position: file is empty")
	}

	if c.MaxActionRetries < 0 {
		return fmt.Errorf("max_action_retries must not be negative, got %d", c.MaxActionRetries)
	}

	if len(c.Actions) == 0 {
		return fmt.Errorf("at least one action must be configured")
	}

	for name, action := range c.Actions {
		if err := action.Validate(); err != nil {
			return fmt.Errorf("action %s: %s", name, err)
		}
	}

	if len(c.Schemas) == 0 {
		return fmt.Errorf("at least one schema must be configured")
	}

	return nil
}

func (a ActionConfig) Validate() error {
	switch a.Type {
	case "log":
		return nil
	case "http":
		if a.URI == "" {
			return fmt.Errorf("uri is empty")
		}
	case "kafka":
		if len(a.Brokers) == 0 {
			return fmt.Errorf("kafka action requires at least one broker address")
		}
		if a.Topic == "" {
			return fmt.Errorf("topic is empty")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

func (c *Config) MetricTags() []ghostrouter.MetricTag {
	tags := make([]ghostrouter.MetricTag, 0, len(c.Statsd.Tags))
	for _, tag := range c.Statsd.Tags {
		name, value, _ := strings.Cut(tag, ":")
		tags = append(tags, ghostrouter.MetricTag{Name: name, Value: value})
	}
	return tags
}
