//go:build !linux

package transport

import (
	"context"

	"github.com/sirupsen/logrus"
)

// RawConfig configures a RawTransport
type RawConfig struct {
	Interfaces []string `mapstructure:"interfaces"`
	QueueSize  int      `mapstructure:"queue_size"`
}

// RawTransport is only available on Linux
type RawTransport struct{}

// NewRawTransport always fails outside Linux
func NewRawTransport(cfg RawConfig, log logrus.FieldLogger) (*RawTransport, error) {
	return nil, NewTransportError("raw transport requires linux AF_PACKET", CodeOpenFailed, nil)
}

func (t *RawTransport) Receive(ctx context.Context) (int, []byte, error) {
	return 0, nil, NewTransportError("transport is closed", CodeClosed, ErrClosed)
}
func (t *RawTransport) Send(port int, data []byte) error { return ErrClosed }
func (t *RawTransport) PortName(port int) string         { return "" }
func (t *RawTransport) NumPorts() int                    { return 0 }
func (t *RawTransport) GetState() ConnectionState        { return StateDisconnected }
func (t *RawTransport) Close() error                     { return nil }
