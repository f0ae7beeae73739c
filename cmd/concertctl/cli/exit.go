// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. The command has already written its own output.
//
// concertctl uses it where a non-zero exit is a valid outcome: a
// refused invitation, a service that failed to enable, a health check
// that is not SERVING.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode implements process.ExitCoder.
func (e *ExitError) ExitCode() int {
	return e.Code
}
