package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a full schema and data backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		stop := progressBars(e)
		art, err := e.CreateBackup(ctx)
		stop()
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", success("Backup created:"), art.Path)
		fmt.Printf("  %d objects, %d rows, %s\n", art.Objects, art.Rows, humanSize(art.Size))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(backupCmd)
}
