package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "sputnik-ledger",
		Usage: "achievement ledger and ranking service",
		Commands: []*cli.Command{
			commandServe(),
			commandWorker(),
			commandCron(),
			commandReconcile(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
