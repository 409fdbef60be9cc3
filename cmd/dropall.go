package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var confirmDrop bool

var dropAllCmd = &cobra.Command{
	Use:   "drop-all",
	Short: "Drop every table and view (no backup, cannot be undone)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDrop {
			return fmt.Errorf("drop-all deletes every table without a backup; rerun with --yes to confirm")
		}
		e, cfg, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		fmt.Printf("%s dropping everything in %s\n", warning("!"), cfg.Database.Name)
		stop := progressBars(e)
		res, err := e.DropAllTables(ctx)
		stop()
		printResult("Statements", res)
		return err
	},
}

func init() {
	RootCmd.AddCommand(dropAllCmd)
	dropAllCmd.Flags().BoolVarP(&confirmDrop, "yes", "y", false, "confirm the irreversible drop")
}
