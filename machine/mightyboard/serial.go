package mightyboard

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultBaud is the speed of current Mightyboard firmware.
const DefaultBaud = 115200

// Baud rates the controllers are known to run at.
var validBaud = map[int]bool{
	4800: true, 9600: true, 14400: true, 19200: true, 28800: true,
	38400: true, 57600: true, 115200: true,
}

// Config describes a serial connection to a device.
type Config struct {
	Port string
	Baud int

	// ReadTimeout bounds the wait for the first byte of a response.
	ReadTimeout time.Duration

	Log logrus.FieldLogger
}

// Open connects to the device on a serial port.
func Open(cfg Config) (*Conn, error) {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	if !validBaud[cfg.Baud] {
		return nil, fmt.Errorf("unsupported baud rate '%d'", cfg.Baud)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = time.Second
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, &IOError{Kind: KindOS, Err: err})
	}

	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{"port": cfg.Port, "baud": cfg.Baud}).Info("connected")
	return NewConn(port, log), nil
}
