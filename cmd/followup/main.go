// Command followup runs the follow-up steps on local files.
//
//	followup cross-check --fleet fleet.yaml --mdl-dir MDLs --reference PDB.xlsx
//	followup build --fleet fleet.yaml --authors authors.yaml --mdl-dir MDLs --reference PDB.xlsx --revision 12
//
// Console lines go to stdout, logs to stderr. The exit status is non-zero
// when a step fails.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/followup/internal/core"
	_ "github.com/JonMunkholm/followup/internal/core/tables" // Register all table kinds
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", core.FormatUserError(err))
		fmt.Fprintln(os.Stderr, "Details:", err)
		stop()
		os.Exit(1)
	}
}
