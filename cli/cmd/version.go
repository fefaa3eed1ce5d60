package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/gristmill-io/gristmill/cli/render"
	"github.com/gristmill-io/gristmill/types"
)

// VersionResponse is the response for the version command.
// Reports the canonical project version (lockstep across the CLI and
// the worker binary).
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(VersionResponse{
			Version: types.Version,
			Commit:  commit,
		})
	}
}
