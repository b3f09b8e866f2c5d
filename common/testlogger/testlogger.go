package testlogger

import (
	"os"
	"testing"

	"github.com/drand/stakedkg/common/log"
)

// Level returns the level to default the logger based on the STAKEDKG_TEST_LOGS presence
func Level(t testing.TB) int {
	if os.Getenv(log.DebugEnv) == "DEBUG" {
		t.Log("Enabling DebugLevel logs")
		return log.DebugLevel
	}
	return log.InfoLevel
}

// New returns a configured logger
func New(t testing.TB) log.Logger {
	return log.New(nil, Level(t), true).
		With("testName", t.Name())
}
