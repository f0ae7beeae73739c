// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry their own exit status.
// The command that returned one has already reported the outcome, so
// nothing more is printed for it.
type ExitCoder interface {
	ExitCode() int
}

// Fatal reports err from main() and exits. Errors implementing
// [ExitCoder] anywhere in their chain exit silently with their code;
// everything else prints "error: err" to stderr and exits 1.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes the message Fatal prints for err to w and returns the
// exit status.
func report(w io.Writer, err error) int {
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
