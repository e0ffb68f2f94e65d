package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := loadEnvFile(os.Args[1:], os.LookupEnv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "orderindexer",
		Usage: "Index order_filled transactions of the fast transfer contract",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Poll the chain and store new order fills",
				Flags:  runFlags(),
				Action: run,
			},
			{
				Name:   "mirror",
				Usage:  "Consume published order fills from Kafka into a store",
				Flags:  mirrorFlags(),
				Action: mirror,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
