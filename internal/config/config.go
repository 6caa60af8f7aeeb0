package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/packwire/internal/logging"
	"github.com/danmuck/packwire/internal/peer"
	"github.com/danmuck/packwire/internal/protocol"
	"github.com/danmuck/packwire/internal/protocol/session"
)

var ErrInvalid = errors.New("config: invalid")

const (
	FormatText = "text"
	FormatJSON = "json"
)

// File is a resolved packwire.toml.
type File struct {
	Client ClientConfig
	Limits protocol.Limits
	Peer   PeerConfig
	Log    LogConfig
}

type ClientConfig struct {
	Host           string
	Port           int
	ChunkSize      int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Format         string
}

type PeerConfig struct {
	Addr        string
	Mode        string
	Greeting    string
	IdleTimeout time.Duration
	AdminAddr   string
	CORSOrigins []string
}

type LogConfig struct {
	Level string
}

func Default() File {
	sc := session.DefaultConfig()
	pc := peer.DefaultConfig()
	return File{
		Client: ClientConfig{
			Host:           sc.Host,
			Port:           sc.Port,
			ChunkSize:      sc.ChunkSize,
			ConnectTimeout: sc.ConnectTimeout,
			ReadTimeout:    sc.ReadTimeout,
			WriteTimeout:   sc.WriteTimeout,
			Format:         FormatText,
		},
		Limits: protocol.DefaultLimits(),
		Peer: PeerConfig{
			Addr:        pc.Addr,
			Mode:        string(pc.Mode),
			Greeting:    pc.Greeting,
			IdleTimeout: pc.IdleTimeout,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load overlays the keys present in path on top of Default. An empty path
// returns the defaults. Unknown keys are rejected.
func Load(path string) (File, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw document
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return File{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return File{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	if err := overlay(&cfg, raw, meta); err != nil {
		return File{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return File{}, err
	}
	return cfg, nil
}

func overlay(cfg *File, raw document, meta toml.MetaData) error {
	var err error
	duration := func(dst *time.Duration, key, value string) {
		if err != nil {
			return
		}
		d, perr := time.ParseDuration(strings.TrimSpace(value))
		if perr != nil {
			err = fmt.Errorf("%w: %s: %w", ErrInvalid, key, perr)
			return
		}
		*dst = d
	}

	c := &cfg.Client
	if meta.IsDefined("client", "host") {
		c.Host = strings.TrimSpace(raw.Client.Host)
	}
	if meta.IsDefined("client", "port") {
		c.Port = raw.Client.Port
	}
	if meta.IsDefined("client", "chunk_size") {
		c.ChunkSize = raw.Client.ChunkSize
	}
	if meta.IsDefined("client", "connect_timeout") {
		duration(&c.ConnectTimeout, "client.connect_timeout", raw.Client.ConnectTimeout)
	}
	if meta.IsDefined("client", "read_timeout") {
		duration(&c.ReadTimeout, "client.read_timeout", raw.Client.ReadTimeout)
	}
	if meta.IsDefined("client", "write_timeout") {
		duration(&c.WriteTimeout, "client.write_timeout", raw.Client.WriteTimeout)
	}
	if meta.IsDefined("client", "format") {
		c.Format = strings.ToLower(strings.TrimSpace(raw.Client.Format))
	}

	l := &cfg.Limits
	if meta.IsDefined("limits", "initial_buffer_size") {
		l.InitialBufferSize = raw.Limits.InitialBufferSize
	}
	if meta.IsDefined("limits", "max_buffer_size") {
		l.MaxBufferSize = raw.Limits.MaxBufferSize
	}
	if meta.IsDefined("limits", "max_depth") {
		l.MaxDepth = raw.Limits.MaxDepth
	}

	p := &cfg.Peer
	if meta.IsDefined("peer", "addr") {
		p.Addr = strings.TrimSpace(raw.Peer.Addr)
	}
	if meta.IsDefined("peer", "mode") {
		p.Mode = strings.ToLower(strings.TrimSpace(raw.Peer.Mode))
	}
	if meta.IsDefined("peer", "greeting") {
		p.Greeting = raw.Peer.Greeting
	}
	if meta.IsDefined("peer", "idle_timeout") {
		duration(&p.IdleTimeout, "peer.idle_timeout", raw.Peer.IdleTimeout)
	}
	if meta.IsDefined("peer", "admin_addr") {
		p.AdminAddr = strings.TrimSpace(raw.Peer.AdminAddr)
	}
	if meta.IsDefined("peer", "cors_origins") {
		p.CORSOrigins = raw.Peer.CORSOrigins
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	return err
}

func Validate(cfg File) error {
	switch cfg.Client.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: client.format %q (expected text or json)", ErrInvalid, cfg.Client.Format)
	}
	if cfg.Limits.InitialBufferSize < 0 || cfg.Limits.MaxBufferSize < 0 {
		return fmt.Errorf("%w: negative buffer size", ErrInvalid)
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, cfg.Log.Level)
	}
	if err := cfg.SessionConfig().Validate(); err != nil {
		return fmt.Errorf("%w: client: %w", ErrInvalid, err)
	}
	pc, err := cfg.PeerConfig()
	if err != nil {
		return fmt.Errorf("%w: peer: %w", ErrInvalid, err)
	}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("%w: peer: %w", ErrInvalid, err)
	}
	return nil
}

// SessionConfig maps the [client] and [limits] sections onto a session
// config. Unset values take session defaults.
func (f File) SessionConfig() session.Config {
	return session.Config{
		Host:           f.Client.Host,
		Port:           f.Client.Port,
		ChunkSize:      f.Client.ChunkSize,
		ConnectTimeout: f.Client.ConnectTimeout,
		ReadTimeout:    f.Client.ReadTimeout,
		WriteTimeout:   f.Client.WriteTimeout,
		Limits:         f.Limits,
	}.WithDefaults()
}

// PeerConfig maps the [peer] and [limits] sections onto a peer config.
func (f File) PeerConfig() (peer.Config, error) {
	mode, err := peer.ParseMode(f.Peer.Mode)
	if err != nil {
		return peer.Config{}, err
	}
	return peer.Config{
		Addr:        f.Peer.Addr,
		Mode:        mode,
		Greeting:    f.Peer.Greeting,
		IdleTimeout: f.Peer.IdleTimeout,
		ChunkSize:   f.Client.ChunkSize,
		Limits:      f.Limits,
		AdminAddr:   f.Peer.AdminAddr,
		CORSOrigins: f.Peer.CORSOrigins,
	}.WithDefaults(), nil
}
