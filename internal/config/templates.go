package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// document is the on-disk shape of packwire.toml. Durations are strings in
// time.ParseDuration syntax.
type document struct {
	Client clientDocument `toml:"client"`
	Limits limitsDocument `toml:"limits"`
	Peer   peerDocument   `toml:"peer"`
	Log    logDocument    `toml:"log"`
}

type clientDocument struct {
	Host           string `toml:"host" comment:"peer to send requests to"`
	Port           int    `toml:"port"`
	ChunkSize      int    `toml:"chunk_size" comment:"bytes requested per read"`
	ConnectTimeout string `toml:"connect_timeout"`
	ReadTimeout    string `toml:"read_timeout" comment:"0s disables the read deadline"`
	WriteTimeout   string `toml:"write_timeout"`
	Format         string `toml:"format" comment:"text | json"`
}

type limitsDocument struct {
	InitialBufferSize int `toml:"initial_buffer_size"`
	MaxBufferSize     int `toml:"max_buffer_size" comment:"decoding beyond this is out of memory"`
	MaxDepth          int `toml:"max_depth" comment:"negative disables the nesting limit"`
}

type peerDocument struct {
	Addr        string   `toml:"addr"`
	Mode        string   `toml:"mode" comment:"echo | greet"`
	Greeting    string   `toml:"greeting"`
	IdleTimeout string   `toml:"idle_timeout" comment:"0s disables the idle deadline"`
	AdminAddr   string   `toml:"admin_addr" comment:"serves /health and /metrics when set"`
	CORSOrigins []string `toml:"cors_origins,omitempty"`
}

type logDocument struct {
	Level string `toml:"level" comment:"trace | debug | info | warn | error | off"`
}

func toDocument(f File) document {
	return document{
		Client: clientDocument{
			Host:           f.Client.Host,
			Port:           f.Client.Port,
			ChunkSize:      f.Client.ChunkSize,
			ConnectTimeout: f.Client.ConnectTimeout.String(),
			ReadTimeout:    f.Client.ReadTimeout.String(),
			WriteTimeout:   f.Client.WriteTimeout.String(),
			Format:         f.Client.Format,
		},
		Limits: limitsDocument{
			InitialBufferSize: f.Limits.InitialBufferSize,
			MaxBufferSize:     f.Limits.MaxBufferSize,
			MaxDepth:          f.Limits.MaxDepth,
		},
		Peer: peerDocument{
			Addr:        f.Peer.Addr,
			Mode:        f.Peer.Mode,
			Greeting:    f.Peer.Greeting,
			IdleTimeout: f.Peer.IdleTimeout.String(),
			AdminAddr:   f.Peer.AdminAddr,
			CORSOrigins: f.Peer.CORSOrigins,
		},
		Log: logDocument{Level: f.Log.Level},
	}
}

// Template renders Default as a commented packwire.toml.
func Template() (string, error) {
	out, err := toml.Marshal(toDocument(Default()))
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return "# packwire configuration\n\n" + string(out), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
