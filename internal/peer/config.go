package peer

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/danmuck/packwire/internal/protocol"
)

var ErrInvalidConfig = errors.New("peer: invalid config")

type Mode string

const (
	ModeEcho  Mode = "echo"
	ModeGreet Mode = "greet"
)

const DefaultGreeting = "Hi from server!"

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeEcho:
		return ModeEcho, nil
	case ModeGreet:
		return ModeGreet, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, raw)
	}
}

type Config struct {
	Addr     string
	Mode     Mode
	Greeting string
	// IdleTimeout bounds the wait for the next request. Zero disables it.
	IdleTimeout time.Duration
	ChunkSize   int
	Limits      protocol.Limits

	// AdminAddr enables the HTTP admin router when set.
	AdminAddr   string
	CORSOrigins []string
}

func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:8080",
		Mode:        ModeEcho,
		Greeting:    DefaultGreeting,
		IdleTimeout: 30 * time.Second,
		ChunkSize:   64 * 1024,
		Limits:      protocol.DefaultLimits(),
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = d.Addr
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.Greeting == "" {
		c.Greeting = d.Greeting
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	c.Limits = c.Limits.WithDefaults()
	return c
}

func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("%w: addr %q: %w", ErrInvalidConfig, c.Addr, err)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: negative idle_timeout", ErrInvalidConfig)
	}
	if c.ChunkSize > c.Limits.MaxBufferSize {
		return fmt.Errorf("%w: chunk_size %d exceeds max_buffer_size %d",
			ErrInvalidConfig, c.ChunkSize, c.Limits.MaxBufferSize)
	}
	if c.AdminAddr != "" {
		if _, _, err := net.SplitHostPort(c.AdminAddr); err != nil {
			return fmt.Errorf("%w: admin_addr %q: %w", ErrInvalidConfig, c.AdminAddr, err)
		}
	}
	return nil
}
