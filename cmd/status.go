package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tables, row counts and available backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cfg, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		report, err := e.Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s@%s:%d/%s\n", heading("Target"), cfg.Database.User, report.Host, report.Port, cfg.Database.Name)
		switch {
		case !report.DatabaseExists:
			fmt.Println("  " + warning("database does not exist, run install"))
		case report.Empty():
			fmt.Println("  " + warning("no tables"))
		default:
			fmt.Printf("\n%s (%d)\n", heading("Tables"), len(report.Tables))
			var total int64
			for _, t := range report.Tables {
				fmt.Printf("  %-30s %10d rows\n", t.Name, t.Rows)
				total += t.Rows
			}
			fmt.Printf("  %-30s %10d rows\n", faint("total"), total)
			if len(report.Views) > 0 {
				fmt.Printf("\n%s (%d)\n", heading("Views"), len(report.Views))
				for _, v := range report.Views {
					fmt.Println("  " + v)
				}
			}
		}

		fmt.Printf("\n%s %s\n", heading("Backups in"), cfg.BackupDir)
		if len(report.Backups) == 0 {
			fmt.Println("  " + faint("none"))
		}
		for _, b := range report.Backups {
			fmt.Printf("  %-50s %10s  %s\n", b.Name, humanSize(b.Size), b.ModTime.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
