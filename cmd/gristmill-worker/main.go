// Package main provides the gristmill-worker entrypoint: the child
// process the pool spawns once per worker slot.
//
// The worker speaks length-prefixed msgpack frames over stdin/stdout
// and serves task frames until stdin closes. Anything written to
// stderr is collected by the parent and attached to failure
// diagnostics, so stderr stays reserved for real errors.
//
// Usage:
//
//	gristmill-worker          serve frames on stdio (what the pool runs)
//	gristmill-worker fns      list the functions this binary registers
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	_ "github.com/gristmill-io/gristmill/fns"
	"github.com/gristmill-io/gristmill/types"
	"github.com/gristmill-io/gristmill/worker"
)

func main() {
	app := &cli.App{
		Name:    "gristmill-worker",
		Usage:   "Batch worker process (framed msgpack over stdio)",
		Version: types.Version,
		Action:  serveAction,
		Commands: []*cli.Command{
			{
				Name:   "fns",
				Usage:  "List registered batch functions",
				Action: fnsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gristmill-worker: %v\n", err)
		os.Exit(1)
	}
}

func serveAction(_ *cli.Context) error {
	return worker.Serve(os.Stdin, os.Stdout)
}

func fnsAction(_ *cli.Context) error {
	for _, name := range worker.Names() {
		fmt.Println(name)
	}
	return nil
}
