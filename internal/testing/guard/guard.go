// Package guard switches the binaries into test mode when imported from a
// test, so package tests never start servers or workers.
package guard

import (
	"os"
	"sync"
)

// Env is the variable the binaries check before starting.
const Env = "INVOICER_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
