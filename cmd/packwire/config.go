package main

import (
	"fmt"

	"github.com/danmuck/packwire/internal/config"
	"github.com/urfave/cli/v2"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Generate or validate packwire.toml",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config template with default values",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "packwire.toml", Usage: "output path"},
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := c.String("output")
					if err := config.WriteTemplate(path, c.Bool("force")); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Load and validate a config file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Value: "packwire.toml", Usage: "config path"},
				},
				Action: func(c *cli.Context) error {
					path := c.String("input")
					if _, err := config.Load(path); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "validated %s\n", path)
					return nil
				},
			},
		},
	}
}
