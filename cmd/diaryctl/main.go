// Command diaryctl is the maintenance tool of the reminder engine. It embeds
// the engine the way an application shell does and exposes its operations:
// running the delivery loop, adding and deleting entries, inspecting the
// platform schedule, auditing, resyncing and resetting it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gophdiary/internal/app"
	"github.com/dmitrijs2005/gophdiary/internal/config"
	"github.com/dmitrijs2005/gophdiary/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "diaryctl",
		Short:         "Operate the diary reminder engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(),
		newAddCmd(),
		newDeleteCmd(),
		newToggleCmd(),
		newListCmd(),
		newPendingCmd(),
		newAuditCmd(),
		newResyncCmd(),
		newResetCmd(),
		newStatsCmd(),
	)
	return root
}

// withApp loads the configuration from cmd's flags, opens the engine, runs fn
// and closes the engine again.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, a)
}
