package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"send timeout", ErrSendTimeout, true},
		{"buffer timeout", ErrBufferTimeout, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"bad parameter", ErrBadParameter, false},
		{"out of resources", ErrOutOfResources, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"out of resources", ErrOutOfResources, true},
		{"hook fault", ErrHookFault, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"bad parameter", ErrBadParameter, false},
		{"panic in message", fmt.Errorf("panic: system failure"), true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"bad parameter", ErrBadParameter, true},
		{"unsupported", ErrUnsupported, true},
		{"precondition", ErrPreconditionNotMet, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil error", nil, ErrorTransient},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"precondition", ErrPreconditionNotMet, ErrorInvalid},
		{"unknown error", fmt.Errorf("unknown error"), ErrorTransient},
		{"classified error", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassifiedError(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	ce := newClassified(ErrorTransient, baseErr, "testComponent", "testOperation", "custom message")

	if ce.Class != ErrorTransient {
		t.Errorf("expected ErrorTransient, got %v", ce.Class)
	}
	if ce.Component != "testComponent" {
		t.Errorf("expected testComponent, got %s", ce.Component)
	}
	if ce.Operation != "testOperation" {
		t.Errorf("expected testOperation, got %s", ce.Operation)
	}
	if ce.Error() != "custom message" {
		t.Errorf("expected 'custom message', got %s", ce.Error())
	}
	if !errors.Is(ce, baseErr) {
		t.Error("classified error should unwrap to base error")
	}

	noMsg := newClassified(ErrorTransient, baseErr, "c", "o", "")
	if noMsg.Error() != "base error" {
		t.Errorf("expected 'base error', got %s", noMsg.Error())
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "component", "method", "action") != nil {
		t.Error("wrapping nil should return nil")
	}

	result := Wrap(fmt.Errorf("original error"), "PeriodicEC", "tick", "invoke on_execute")
	expected := "PeriodicEC.tick: invoke on_execute failed: original error"
	if result == nil || result.Error() != expected {
		t.Errorf("expected '%s', got '%v'", expected, result)
	}
}

func TestWrapClassified(t *testing.T) {
	baseErr := fmt.Errorf("original error")

	tests := []struct {
		name     string
		wrapFunc func(error, string, string, string) error
		class    ErrorClass
	}{
		{"WrapTransient", WrapTransient, ErrorTransient},
		{"WrapFatal", WrapFatal, ErrorFatal},
		{"WrapInvalid", WrapInvalid, ErrorInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.wrapFunc(baseErr, "component", "method", "action")

			var ce *ClassifiedError
			if !errors.As(result, &ce) {
				t.Error("result should be a ClassifiedError")
				return
			}
			if ce.Class != test.class {
				t.Errorf("expected %v, got %v", test.class, ce.Class)
			}
			if !strings.Contains(ce.Error(), "component.method: action failed") {
				t.Errorf("error should contain standard format, got: %s", ce.Error())
			}
			if !errors.Is(result, baseErr) {
				t.Error("wrapped error should unwrap to base error")
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ReturnCode
	}{
		{"nil", nil, OK},
		{"bad parameter", ErrBadParameter, BadParameter},
		{"wrapped bad parameter", WrapInvalid(ErrBadParameter, "Port", "Connect", "validate"), BadParameter},
		{"unsupported", ErrUnsupported, Unsupported},
		{"out of resources", ErrOutOfResources, OutOfResources},
		{"precondition", fmt.Errorf("activate: %w", ErrPreconditionNotMet), PreconditionNotMet},
		{"other", fmt.Errorf("hook failed"), Error},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Code(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected PortStatus
	}{
		{"nil", nil, PortOK},
		{"buffer full", ErrBufferFull, BufferFull},
		{"buffer empty", ErrBufferEmpty, BufferEmpty},
		{"buffer timeout", ErrBufferTimeout, BufferTimeout},
		{"send full", ErrSendFull, SendFull},
		{"send timeout", ErrSendTimeout, SendTimeout},
		{"send full over buffer full", fmt.Errorf("%w: %w", ErrSendFull, ErrBufferFull), SendFull},
		{"recv empty", ErrRecvEmpty, RecvEmpty},
		{"recv timeout", ErrRecvTimeout, RecvTimeout},
		{"connection lost", WrapTransient(ErrConnectionLost, "natsChannel", "Push", "publish"), ConnectionLost},
		{"transport", ErrTransport, TransportError},
		{"closed buffer", ErrBufferClosed, PortError},
		{"deadline", context.DeadlineExceeded, SendTimeout},
		{"unknown", fmt.Errorf("boom"), UnknownError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Status(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestStatusNames(t *testing.T) {
	if ConnectionLost.String() != "CONNECTION_LOST" {
		t.Errorf("unexpected name %s", ConnectionLost.String())
	}
	if PortStatus(99).String() != "UNKNOWN_ERROR" {
		t.Errorf("unexpected name %s", PortStatus(99).String())
	}
	if PreconditionNotMet.String() != "PRECONDITION_NOT_MET" {
		t.Errorf("unexpected name %s", PreconditionNotMet.String())
	}
}

func TestStatusErrorRoundTrip(t *testing.T) {
	for s := PortError; s <= UnknownError; s++ {
		err := StatusError(s)
		if err == nil {
			t.Fatalf("%v: expected sentinel", s)
		}
		if got := Status(err); got != s {
			t.Errorf("%v: Status(StatusError) = %v", s, got)
		}
		if got := ParsePortStatus(s.String()); got != s {
			t.Errorf("%v: ParsePortStatus = %v", s, got)
		}
	}
	if StatusError(PortOK) != nil {
		t.Error("PortOK must map to nil")
	}
	if ParsePortStatus("nonsense") != UnknownError {
		t.Error("unknown names must map to UnknownError")
	}
}

func BenchmarkStatus(b *testing.B) {
	err := Wrap(ErrSendTimeout, "Connector", "push", "send")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Status(err)
	}
}
