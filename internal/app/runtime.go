package app

import (
	"os"
	"strings"
	"sync"
)

const testModeEnv = "DEPOT_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return parseFlag(os.Getenv(testModeEnv))
})

// InTestMode reports whether outbound side effects (event publishing, trace
// export, cron registration) are switched off for this process.
func InTestMode() bool {
	return testMode()
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
