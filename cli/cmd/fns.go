package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/gristmill-io/gristmill/cli/render"
	"github.com/gristmill-io/gristmill/worker"
)

// FnItem is one row in the fns listing.
type FnItem struct {
	Name string `json:"name"`
}

// FnsCommand returns the fns command, listing every batch function
// registered in this binary. The worker binary must register the same
// set; a name listed here but missing there fails at run time with a
// worker failure.
func FnsCommand() *cli.Command {
	return &cli.Command{
		Name:   "fns",
		Usage:  "List registered batch functions",
		Flags:  ReadOnlyFlags(),
		Action: fnsAction,
	}
}

func fnsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	names := worker.Names()
	items := make([]FnItem, len(names))
	for i, name := range names {
		items[i] = FnItem{Name: name}
	}
	return r.Render(items)
}
