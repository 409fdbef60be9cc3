package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Restore a backup (the newest one when no file is given)",
	Long: `Restores a backup file into the configured database. A safety backup of the
current state is written first. Existing objects are kept; already-existing
tables and duplicate rows are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var name string
		if len(args) == 1 {
			name = args[0]
		}
		stop := progressBars(e)
		report, err := e.RestoreBackup(ctx, name)
		stop()
		if report != nil {
			fmt.Printf("%s %s\n", heading("Restored from"), report.File)
			if report.SafetyBackup != nil {
				fmt.Printf("  safety backup: %s\n", report.SafetyBackup.Path)
			}
			printResult("Statements", report.Result)
			fmt.Printf("  %d table(s) in database\n", report.Tables)
		}
		return err
	},
}

func init() {
	RootCmd.AddCommand(restoreCmd)
}
