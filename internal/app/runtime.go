package app

import (
	"os"
	"sync/atomic"
)

// TestModeEnv makes the binaries return before touching Postgres or Redis.
const TestModeEnv = "INVENTORY_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether TestModeEnv was set to 1. The value is read once
// and cached; call RefreshTestMode after changing the environment.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv and returns the new value.
func RefreshTestMode() bool {
	on := os.Getenv(TestModeEnv) == "1"
	testMode.Store(&on)
	return on
}
