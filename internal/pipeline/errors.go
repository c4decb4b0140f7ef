package pipeline

import (
	"errors"
	"fmt"
)

// FatalSourceError marks an unrecoverable condition for one source, e.g.
// an expired media reference. It aborts that source's worker without
// retry; other sources keep running, and the overall run exits non-zero
// once all of them have finished.
type FatalSourceError struct {
	SourceName string
	Err        error
}

func (e *FatalSourceError) Error() string {
	return fmt.Sprintf("source %s failed fatally: %v", e.SourceName, e.Err)
}

func (e *FatalSourceError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error chain contains a FatalSourceError
func IsFatal(err error) bool {
	var fatal *FatalSourceError
	return errors.As(err, &fatal)
}
