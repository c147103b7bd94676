package split

import "fmt"

// RangeError reports a claimed quantity or tip percentage outside its
// allowed domain. The operation that returned it left its inputs unchanged.
type RangeError struct {
	msg string
}

func (e *RangeError) Error() string {
	return e.msg
}

func rangeErrorf(format string, args ...any) *RangeError {
	return &RangeError{msg: fmt.Sprintf(format, args...)}
}
