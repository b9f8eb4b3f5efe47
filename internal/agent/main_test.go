// File: internal/agent/main_test.go
package agent_test

import (
	"os"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
)

// TestMain initializes the global logger and checks that no run goroutine
// outlives the tests.
func TestMain(m *testing.M) {
	logConfig := config.NewDefaultConfig().Logger()
	logConfig.Level = "debug"
	logConfig.ServiceName = "test-suite"
	logConfig.Format = "console"
	logConfig.LogFile = ""

	observability.Initialize(logConfig, zapcore.Lock(os.Stdout))

	goleak.VerifyTestMain(m, goleak.Cleanup(func(int) {
		observability.Sync()
		observability.ResetForTest()
	}))
}
