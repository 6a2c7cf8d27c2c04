package cli

import (
	"strings"

	"github.com/specialistvlad/stagecheck/internal/engine"
)

// isUsageError matches the errors cobra returns for bad flags and arguments.
func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown flag", "unknown shorthand flag", "flag needs an argument", "invalid argument", "accepts at most", "unknown command"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func failedTasks(tasks []engine.TaskReport) int {
	n := 0
	for _, t := range tasks {
		if t.Status != engine.StatusPassed {
			n++
		}
	}
	return n
}
