package errors

import (
	"context"
	"errors"
)

// ReturnCode is the lifecycle result reported on the outward API.
type ReturnCode int

const (
	OK ReturnCode = iota
	Error
	BadParameter
	Unsupported
	OutOfResources
	PreconditionNotMet
)

func (c ReturnCode) String() string {
	switch c {
	case OK:
		return "RTC_OK"
	case Error:
		return "RTC_ERROR"
	case BadParameter:
		return "BAD_PARAMETER"
	case Unsupported:
		return "UNSUPPORTED"
	case OutOfResources:
		return "OUT_OF_RESOURCES"
	case PreconditionNotMet:
		return "PRECONDITION_NOT_MET"
	default:
		return "UNKNOWN"
	}
}

// Code maps err onto a ReturnCode. nil is OK; anything unrecognised is Error.
func Code(err error) ReturnCode {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrBadParameter):
		return BadParameter
	case errors.Is(err, ErrUnsupported):
		return Unsupported
	case errors.Is(err, ErrOutOfResources):
		return OutOfResources
	case errors.Is(err, ErrPreconditionNotMet):
		return PreconditionNotMet
	default:
		return Error
	}
}

// PortStatus is the data transport result reported by buffers, publishers and channels.
type PortStatus int

const (
	PortOK PortStatus = iota
	PortError
	BufferFull
	BufferEmpty
	BufferTimeout
	SendFull
	SendTimeout
	RecvEmpty
	RecvTimeout
	ConnectionLost
	TransportError
	UnknownError
)

var portStatusNames = map[PortStatus]string{
	PortOK:         "PORT_OK",
	PortError:      "PORT_ERROR",
	BufferFull:     "BUFFER_FULL",
	BufferEmpty:    "BUFFER_EMPTY",
	BufferTimeout:  "BUFFER_TIMEOUT",
	SendFull:       "SEND_FULL",
	SendTimeout:    "SEND_TIMEOUT",
	RecvEmpty:      "RECV_EMPTY",
	RecvTimeout:    "RECV_TIMEOUT",
	ConnectionLost: "CONNECTION_LOST",
	TransportError: "TRANSPORT_ERROR",
	UnknownError:   "UNKNOWN_ERROR",
}

func (s PortStatus) String() string {
	if name, ok := portStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN_ERROR"
}

// Status maps err onto a PortStatus. Send and receive statuses win over the
// buffer status they wrap.
func Status(err error) PortStatus {
	switch {
	case err == nil:
		return PortOK
	case errors.Is(err, ErrConnectionLost):
		return ConnectionLost
	case errors.Is(err, ErrSendFull):
		return SendFull
	case errors.Is(err, ErrSendTimeout):
		return SendTimeout
	case errors.Is(err, ErrRecvEmpty):
		return RecvEmpty
	case errors.Is(err, ErrRecvTimeout):
		return RecvTimeout
	case errors.Is(err, ErrBufferFull):
		return BufferFull
	case errors.Is(err, ErrBufferEmpty):
		return BufferEmpty
	case errors.Is(err, ErrBufferTimeout):
		return BufferTimeout
	case errors.Is(err, ErrTransport):
		return TransportError
	case errors.Is(err, ErrPortError), errors.Is(err, ErrBufferClosed):
		return PortError
	case errors.Is(err, context.DeadlineExceeded):
		return SendTimeout
	default:
		return UnknownError
	}
}

// IsConnectionLost reports whether err means the remote side is gone rather than slow.
func IsConnectionLost(err error) bool {
	return errors.Is(err, ErrConnectionLost)
}

var statusErrors = map[PortStatus]error{
	PortError:      ErrPortError,
	BufferFull:     ErrBufferFull,
	BufferEmpty:    ErrBufferEmpty,
	BufferTimeout:  ErrBufferTimeout,
	SendFull:       ErrSendFull,
	SendTimeout:    ErrSendTimeout,
	RecvEmpty:      ErrRecvEmpty,
	RecvTimeout:    ErrRecvTimeout,
	ConnectionLost: ErrConnectionLost,
	TransportError: ErrTransport,
	UnknownError:   ErrUnknown,
}

// ParsePortStatus maps a status name such as "SEND_FULL" back onto a PortStatus.
func ParsePortStatus(name string) PortStatus {
	for s, n := range portStatusNames {
		if n == name {
			return s
		}
	}
	return UnknownError
}

// StatusError returns the sentinel for s, or nil for PortOK.
func StatusError(s PortStatus) error {
	if s == PortOK {
		return nil
	}
	if err, ok := statusErrors[s]; ok {
		return err
	}
	return ErrUnknown
}
