package testhelpers

import (
	"io"
	"os"

	"github.com/Shopify/ghostrouter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// SetupTest resets the global state tests share: log level, from
// LOG_LEVEL when set, and metrics, which are disabled.
func SetupTest() {
	level := logrus.DebugLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		parsed, err := logrus.ParseLevel(env)
		PanicIfError(err)
		level = parsed
	}

	logrus.SetLevel(level)
	if level == logrus.PanicLevel {
		logrus.SetOutput(io.Discard)
	}

	ghostrouter.SetGlobalMetrics(&ghostrouter.Metrics{Prefix: "test"})
}

type GhostrouterUnitTestSuite struct {
	suite.Suite
}

func (this *GhostrouterUnitTestSuite) SetupTest() {
	SetupTest()
}
