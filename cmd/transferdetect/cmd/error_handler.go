package cmd

import (
	apperrors "transfer-detection-service/pkg/errors"
)

// ExitCode maps an error from a command run to a process exit code.
// Categorized errors carry their own code; everything else exits 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return apperrors.GetExitCode(err)
}
