package connectors

import (
	"context"
	"errors"
	"reflect"
	"strings"
)

type kinded interface {
	Kind() string
}

// DescribeError renders err as "<Kind>: <message>" for run diagnostics. An
// error without text is reported as "no details provided".
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = "no details provided"
	}
	return ErrorKind(err) + ": " + message
}

// ErrorKind names the failure class of err: an explicit Kind() wins, then
// well-known context errors, then the concrete type name.
func ErrorKind(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch name := t.Name(); name {
	case "", "errorString", "wrapError", "wrapErrors", "joinError":
		return "Error"
	default:
		return name
	}
}
