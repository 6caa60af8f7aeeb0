package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/packwire/internal/protocol"
)

var ErrInvalidConfig = errors.New("session: invalid config")

// Config defines the target peer and read/timeout behavior of a Session.
type Config struct {
	Host           string
	Port           int
	ChunkSize      int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Limits         protocol.Limits
}

// DefaultConfig returns defaults matching the reference peer on
// 127.0.0.1:8080 with 64 KiB reads.
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8080,
		ChunkSize:      64 * 1024,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		Limits:         protocol.DefaultLimits(),
	}
}

// WithDefaults fills unset fields. Zero read/write timeouts stay disabled.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Host) == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	c.Limits = c.Limits.WithDefaults()
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.Limits.MaxBufferSize > 0 && c.ChunkSize > c.Limits.MaxBufferSize {
		return fmt.Errorf("%w: chunk_size %d exceeds max_buffer_size %d",
			ErrInvalidConfig, c.ChunkSize, c.Limits.MaxBufferSize)
	}
	return nil
}

// Address returns host:port.
func (c Config) Address() string {
	return joinHostPort(c.Host, c.Port)
}
