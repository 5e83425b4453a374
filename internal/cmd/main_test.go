package cmd

import (
	"os"
	"testing"
)

// Runs started by these tests re-execute the test binary as their workers.
// With DIRSTAT_TEST_WORKER=1 it behaves like the dirstat binary instead of
// running the tests.
func TestMain(m *testing.M) {
	if os.Getenv("DIRSTAT_TEST_WORKER") == "1" {
		root := NewRootCommand()
		root.SetArgs(os.Args[1:])
		if err := root.Execute(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}
