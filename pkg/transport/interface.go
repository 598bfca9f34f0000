package transport

import (
	"context"
	"errors"
)

// ConnectionState represents the state of a transport
type ConnectionState int

const (
	// StateDisconnected represents a transport that is not open
	StateDisconnected ConnectionState = iota
	// StateConnected represents a transport that is delivering frames
	StateConnected
)

// String returns the string representation of the connection state
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transport moves raw Ethernet frames in and out of numbered switch ports.
// Port indices are dense, 0..NumPorts()-1, and stable for the transport's life.
type Transport interface {
	// Receive blocks until a frame arrives on any port, ctx is done or the
	// transport is closed (ErrClosed)
	Receive(ctx context.Context) (port int, data []byte, err error)

	// Send transmits a frame on one port. Delivery is best effort.
	Send(port int, data []byte) error

	// PortName returns the stable display name of a port
	PortName(port int) string

	// NumPorts returns the number of ports
	NumPorts() int

	// GetState returns the current state of the transport
	GetState() ConnectionState

	// Close releases the ports; pending and future Receive calls return ErrClosed
	Close() error
}

// Error codes carried by TransportError
const (
	CodeClosed      = 1001
	CodeInvalidPort = 1002
	CodeBadConfig   = 1003
	CodeSendFailed  = 1004
	CodeOpenFailed  = 1005
)

// ErrClosed is the root cause of every error returned by a closed transport
var ErrClosed = errors.New("stella: transport closed")

// TransportError represents an error that occurs in the transport layer
type TransportError struct {
	// Message is a description of the error
	Message string
	// Code is an error code for the specific error type
	Code int
	// Underlying is the underlying error that caused this error
	Underlying error
}

// Error returns the string representation of the transport error
func (e *TransportError) Error() string {
	if e.Underlying != nil {
		return e.Message + ": " + e.Underlying.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Underlying
}

// NewTransportError creates a new transport error
func NewTransportError(message string, code int, underlying error) *TransportError {
	return &TransportError{
		Message:    message,
		Code:       code,
		Underlying: underlying,
	}
}
