// Package cmd provides CLI commands for the gristmill binary.
package cmd

import "github.com/urfave/cli/v2"

// FormatFlag selects output format: json, table, yaml.
var FormatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: json, table, yaml",
}

// ReadOnlyFlags returns the shared flags for commands that only render
// data.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
	}
}
