package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/packwire/internal/client"
	"github.com/danmuck/packwire/internal/config"
	"github.com/danmuck/packwire/internal/logging"
	"github.com/urfave/cli/v2"
)

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send [42, \"Hello\", \"World!\"] and print the reply",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: "host", Usage: "peer host"},
			&cli.IntFlag{Name: "port", Usage: "peer port"},
			&cli.StringFlag{Name: "format", Usage: "output format: text|json"},
		},
		Action: runSend,
	}
}

func runSend(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("host") {
		cfg.Client.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Client.Port = c.Int("port")
	}
	if c.IsSet("format") {
		cfg.Client.Format = c.String("format")
	}
	logging.SetLevel(cfg.Log.Level)

	svc, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reply, err := svc.Run(ctx, client.DefaultRequest())
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if reply.Trailing() {
		fmt.Fprintln(c.App.ErrWriter, "warning: peer sent bytes after the reply; they were discarded")
	}
	return client.Render(c.App.Writer, reply, svc.Format())
}
