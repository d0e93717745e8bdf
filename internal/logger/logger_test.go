package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	log, err := NewLogger("debug", false)
	suite.Require().NoError(err)
	suite.NotNil(log.Logger)
	suite.True(log.Core().Enabled(-1))
}

func (suite *LoggerTestSuite) TestNewDevelopmentLogger() {
	log, err := NewLogger("warn", true)
	suite.Require().NoError(err)
	suite.False(log.Core().Enabled(0))
	suite.True(log.Core().Enabled(1))
}

func (suite *LoggerTestSuite) TestInvalidLevel() {
	_, err := NewLogger("verbose", false)
	suite.Error(err)
	suite.Contains(err.Error(), "invalid log level")
}

func (suite *LoggerTestSuite) TestNopLogger() {
	log := NewNopLogger()
	log.Info("discarded")
	suite.NotNil(log.Logger)
}
