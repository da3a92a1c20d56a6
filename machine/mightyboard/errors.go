package mightyboard

import (
	"errors"
	"fmt"

	"github.com/mastercactapus/gpx/x3g"
)

// StatusError is a response status other than success.
type StatusError struct {
	Status x3g.Status
}

func (e StatusError) Error() string {
	return fmt.Sprintf("mightyboard: 0x%02x %s", byte(e.Status), e.Status)
}

// Retryable reports whether sending the same packet again may succeed.
func (e StatusError) Retryable() bool { return e.Status.Retryable() }

// IOKind says which part of an exchange failed.
type IOKind int

const (
	KindWrite IOKind = iota
	KindRead
	KindFrame
	KindCRC
	KindTimeout
	KindOS
)

func (k IOKind) String() string {
	switch k {
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	case KindFrame:
		return "frame"
	case KindCRC:
		return "crc"
	case KindTimeout:
		return "timeout"
	}
	return "os"
}

// IOError is a failure talking to the device, as opposed to the device
// rejecting a command.
type IOError struct {
	Kind IOKind
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return "mightyboard: " + e.Kind.String() + " error"
	}
	return "mightyboard: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a status the device expects a resend
// for, or a garbled response.
func IsRetryable(err error) bool {
	var se StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return ioe.Kind == KindCRC
	}
	return false
}

// IsCancel reports whether the device cancelled the build.
func IsCancel(err error) bool {
	var se StatusError
	return errors.As(err, &se) && se.Status == x3g.StatusCancelBuild
}

// StatusOf returns the device status carried by err, or StatusSuccess for
// nil. ok is false for errors that are not device statuses.
func StatusOf(err error) (s x3g.Status, ok bool) {
	if err == nil {
		return x3g.StatusSuccess, true
	}
	var se StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}
