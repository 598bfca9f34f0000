package transport

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// TransportType selects a transport implementation
type TransportType string

const (
	TransportTypeMemory TransportType = "memory"
	TransportTypeUDP    TransportType = "udp"
	TransportTypeRaw    TransportType = "raw"
)

// memoryConfig configures an unconnected in-process transport
type memoryConfig struct {
	Ports []string `mapstructure:"ports"`
}

// NewTransport builds a transport from its type and the raw configuration map
func NewTransport(transportType TransportType, config map[string]interface{}, log logrus.FieldLogger) (Transport, error) {
	switch transportType {
	case TransportTypeMemory:
		var cfg memoryConfig
		if err := decode(config, &cfg); err != nil {
			return nil, err
		}
		if len(cfg.Ports) == 0 {
			return nil, NewTransportError("memory transport needs at least one port", CodeBadConfig, nil)
		}
		return NewMemoryTransport(cfg.Ports...), nil

	case TransportTypeUDP:
		var cfg UDPConfig
		if err := decode(config, &cfg); err != nil {
			return nil, err
		}
		t, err := NewUDPTransport(cfg, log)
		if err != nil {
			return nil, err
		}
		return t, nil

	case TransportTypeRaw:
		var cfg RawConfig
		if err := decode(config, &cfg); err != nil {
			return nil, err
		}
		t, err := NewRawTransport(cfg, log)
		if err != nil {
			return nil, err
		}
		return t, nil

	default:
		return nil, NewTransportError(fmt.Sprintf("unsupported transport type %q", transportType), CodeBadConfig, nil)
	}
}

func decode(config map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(config); err != nil {
		return NewTransportError("invalid transport configuration", CodeBadConfig, err)
	}
	return nil
}
