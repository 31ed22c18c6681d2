// Package assert implements fatal precondition checks for the board.
//
// A failed check is not an error a caller can handle: the installed Handler
// reports the failure and never returns.
package assert

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"
)

// Location is the source position of a failed check.
type Location struct {
	File string
	Line int
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Handler is called with the location and formatted message of a failed
// check. Implementations must not return to the caller; a handler used in
// tests may end the calling goroutine with runtime.Goexit instead.
type Handler interface {
	Fail(loc Location, msg string)
}

// HandlerFunc is the func form of Handler.
type HandlerFunc func(Location, string)

// Fail implements Handler.
func (f HandlerFunc) Fail(loc Location, msg string) {
	f(loc, msg)
}

var handler atomic.Pointer[Handler]

func init() {
	SetHandler(NewReporter(nil, nil))
}

// SetHandler installs h as the process-wide failure handler and returns a
// func restoring the previous one.
func SetHandler(h Handler) (restore func()) {
	if h == nil {
		panic("assert: nil handler")
	}
	prev := handler.Swap(&h)
	return func() {
		if prev != nil {
			handler.Store(prev)
		}
	}
}

// True checks cond and fails with the formatted message at the caller's
// location when it is false.
func True(cond bool, format string, args ...interface{}) {
	if !cond {
		fail(2, format, args...)
	}
}

// That is an alias of True.
func That(cond bool, format string, args ...interface{}) {
	if !cond {
		fail(2, format, args...)
	}
}

// Fail fails unconditionally at the caller's location.
func Fail(format string, args ...interface{}) {
	fail(2, format, args...)
}

func fail(skip int, format string, args ...interface{}) {
	var loc Location
	if _, file, line, ok := runtime.Caller(skip); ok {
		loc = Location{File: filepath.Base(file), Line: line}
	} else {
		loc = Location{File: "???"}
	}
	(*handler.Load()).Fail(loc, fmt.Sprintf(format, args...))
	// handlers do not return; stop here if one does anyway.
	select {}
}
