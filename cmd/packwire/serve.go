package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/packwire/internal/config"
	"github.com/danmuck/packwire/internal/logging"
	"github.com/danmuck/packwire/internal/peer"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a peer that answers packwire requests",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: "addr", Usage: "listen address"},
			&cli.StringFlag{Name: "mode", Usage: "reply mode: echo|greet"},
			&cli.StringFlag{Name: "admin-addr", Usage: "admin HTTP address for /health and /metrics"},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Peer.Addr = c.String("addr")
	}
	if c.IsSet("mode") {
		cfg.Peer.Mode = c.String("mode")
	}
	if c.IsSet("admin-addr") {
		cfg.Peer.AdminAddr = c.String("admin-addr")
	}
	logging.SetLevel(cfg.Log.Level)

	pc, err := cfg.PeerConfig()
	if err != nil {
		return err
	}
	srv, err := peer.New(pc)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("addr", pc.Addr).Str("mode", string(pc.Mode)).Msg("peer starting")
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	log.Info().Int64("served", srv.Served()).Msg("peer stopped")
	return nil
}
