package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Back up, empty every table and insert the baseline data",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		stop := progressBars(e)
		report, err := e.ResetDatabase(ctx)
		stop()
		if report != nil {
			if report.Backup != nil {
				fmt.Printf("%s %s\n", success("Backup created:"), report.Backup.Path)
			}
			fmt.Printf("  %d table(s) emptied, %d baseline row(s) inserted\n", report.Truncated, report.Seeded)
			printResult("Statements", report.Result)
		}
		return err
	},
}

func init() {
	RootCmd.AddCommand(resetCmd)
}
