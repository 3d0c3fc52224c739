// Package guard switches the process into test mode when imported for side
// effects from a test binary.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "DEPOT_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
