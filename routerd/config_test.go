package routerd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const testConfig = `
source:
  host: 127.0.0.1
  user: ghostrouter
my_server_id: 99399
start_from_binlog_position:
  file: mysql-bin.000003
  pos: 4
statsd:
  address: 127.0.0.1:8125
  tags: ["env:test", "canary"]
action_retry_sleep: 250ms
error_callback:
  uri: http://localhost:9000/error
actions:
  orders:
    type: kafka
    brokers: ["localhost:9092"]
    topic: orders
    compress: true
  audit:
    type: log
    level: debug
compressed_columns:
  order:
    body: snappy
schemas:
  - name: shop
    action_kind: event_type
    tables:
      - name: order
        action: orders
        forbid: [delete]
        skip_deleted: true
        condition:
          must:
            - field: total
              op: range
              type: decimal
              gte: 10
          must_not:
            - field: state
              op: in
              values: [cancelled, refunded]
      - name: customer
        action: audit
        columns: [id, email]
`

type ConfigTestSuite struct {
	suite.Suite

	path string
}

func (this *ConfigTestSuite) SetupTest() {
	this.path = filepath.Join(this.T().TempDir(), "ghostrouter.yml")
	this.Require().Nil(os.WriteFile(this.path, []byte(testConfig), 0o600))
}

func (this *ConfigTestSuite) TestLoadConfig() {
	config, err := LoadConfig(this.path)
	this.Require().Nil(err)

	this.Require().Equal("127.0.0.1", config.Source.Host)
	this.Require().Equal(uint16(3306), config.Source.Port)
	this.Require().Equal(uint32(99399), config.MyServerId)
	this.Require().Equal(&BinlogPosition{File: "mysql-bin.000003", Pos: 4}, config.StartFromBinlogPosition)

	this.Require().Equal(DefaultServerBindAddr, config.ServerBindAddr)
	this.Require().Equal(DefaultMaxActionRetries, config.MaxActionRetries)
	this.Require().Equal(250*time.Millisecond, config.ActionRetrySleep)
	this.Require().Equal(DefaultStatsdQueueSize, config.Statsd.QueueSize)
	this.Require().Equal("http://localhost:9000/error", config.ErrorCallback.URI)

	this.Require().Len(config.Actions, 2)
	this.Require().Equal("kafka", config.Actions["orders"].Type)
	this.Require().True(config.Actions["orders"].Compress)
	this.Require().Equal("snappy", config.CompressedColumns["order"]["body"])

	this.Require().Len(config.Schemas, 1)
	shop := config.Schemas[0]
	this.Require().Equal("event_type", shop.ActionKind)
	this.Require().Len(shop.Tables, 2)
	this.Require().True(shop.Tables[0].SkipDeleted)
	this.Require().Equal([]string{"delete"}, shop.Tables[0].Forbid)
	this.Require().Len(shop.Tables[0].Condition.Must, 1)
	this.Require().Len(shop.Tables[0].Condition.MustNot[0].Values, 2)
	this.Require().Equal([]string{"id", "email"}, shop.Tables[1].Columns)

	this.Require().Nil(config.ValidateConfig())
}

func (this *ConfigTestSuite) TestEnvironmentOverridesFile() {
	this.T().Setenv("GHOSTROUTER_SOURCE_PASS", "from-env")
	this.T().Setenv("GHOSTROUTER_SOURCE_HOST", "db.internal")

	config, err := LoadConfig(this.path)
	this.Require().Nil(err)
	this.Require().Equal("from-env", config.Source.Pass)
	this.Require().Equal("db.internal", config.Source.Host)
}

func (this *ConfigTestSuite) TestMissingFile() {
	_, err := LoadConfig(filepath.Join(this.T().TempDir(), "missing.yml"))
	this.Require().NotNil(err)
}

func (this *ConfigTestSuite) TestValidateConfig() {
	config, err := LoadConfig(this.path)
	this.Require().Nil(err)

	config.Source.User = ""
	this.Require().EqualError(config.ValidateConfig(), "source: user is empty")
	config.Source.User = "ghostrouter"

	config.StartFromBinlogPosition = &BinlogPosition{}
	this.Require().EqualError(config.ValidateConfig(), "start_from_binlog_position: file is empty")
	config.StartFromBinlogPosition = nil

	config.Actions["broken"] = ActionConfig{Type: "carrier-pigeon"}
	this.Require().EqualError(config.ValidateConfig(), `action broken: unknown action type "carrier-pigeon"`)
	delete(config.Actions, "broken")

	config.Schemas = nil
	this.Require().EqualError(config.ValidateConfig(), "at least one schema must be configured")
}

func (this *ConfigTestSuite) TestMetricTags() {
	config, err := LoadConfig(this.path)
	this.Require().Nil(err)

	tags := config.MetricTags()
	this.Require().Len(tags, 2)
	this.Require().Equal("env", tags[0].Name)
	this.Require().Equal("test", tags[0].Value)
	this.Require().Equal("canary", tags[1].Name)
	this.Require().Equal("", tags[1].Value)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
