package main

import (
	"fmt"
	"io"
	"os"

	"github.com/danmuck/packwire/internal/logging"
	"github.com/urfave/cli/v2"
)

func main() {
	logging.ConfigureRuntime()
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "packwire"
	app.Usage = "Exchange MessagePack values with a peer over TCP"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Commands = []*cli.Command{
		sendCommand(),
		serveCommand(),
		configCommand(),
	}
	return app
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to packwire.toml (defaults are used when empty)",
	EnvVars: []string{"PACKWIRE_CONFIG"},
}
