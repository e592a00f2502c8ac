package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0
	ExitDegraded = 1 // The run completed but results may not have been recorded
	ExitError    = 2 // Configuration or runtime error
)

// DegradedError reports a run that completed with logged stage failures.
type DegradedError struct {
	Err error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("run completed with errors: %v", e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var degraded *DegradedError
		if errors.As(err, &degraded) {
			os.Exit(ExitDegraded)
		}
		os.Exit(ExitError)
	}
}
