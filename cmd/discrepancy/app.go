package main

import (
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "discrepancy",
		Usage: "Reconcile carrier invoices against internal shipment charges",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the CarrierBox YAML config (postgres, kafka, redis)",
				EnvVars: []string{"configPath"},
			},
		},
		Commands: []*cli.Command{
			reportCommand(),
			workerCommand(),
		},
	}
}
