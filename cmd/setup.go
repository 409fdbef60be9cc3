package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:     "install",
	Aliases: []string{"setup"},
	Short:   "Create the database if missing, then sync it with the schema file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd)
	},
}

func init() {
	RootCmd.AddCommand(installCmd)
}

func runSetup(cmd *cobra.Command) error {
	e, cfg, err := newEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	fmt.Printf("Setting up %s on %s:%d\n", heading(cfg.Database.Name), cfg.Database.Host, cfg.Database.Port)
	stop := progressBars(e)
	report, err := e.Setup(ctx)
	stop()
	if report != nil {
		printSyncReport(report)
	}
	return err
}
