// Command crstransform looks up coordinate reference systems and converts
// coordinates between them.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	a := newApp()
	if err := execute(a, newRoot(a)); err != nil {
		os.Exit(1)
	}
}

// execute runs root and releases the registry and log file whether or not
// the command succeeds.
func execute(a *app, root *cobra.Command) error {
	defer a.close()
	err := root.Execute()
	if err != nil {
		a.log.WithError(err).Error("crstransform failed")
	}
	return err
}
