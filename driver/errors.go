package driver

import "fmt"

// ThrottledError is returned instead of contacting the backend once MaxCreateErrors consecutive
// creation attempts have failed. Err is the most recent creation failure.
type ThrottledError struct {
	Count  int
	Driver Kind
	Err    error
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("previous %d instantiations of driver %s failed, not trying again (%s)",
		e.Count, e.Driver, e.Err)
}

func (e *ThrottledError) Unwrap() error {
	return e.Err
}
