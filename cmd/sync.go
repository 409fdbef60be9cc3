package cmd

import (
	"fmt"

	"db-sync/internal/engine"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bring the live schema in line with the schema file",
	Long: `Creates missing tables, drops tables the schema file no longer declares,
adds missing columns and recreates views. Existing columns are never altered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cfg, err := newEngine()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		fmt.Printf("Syncing %s from %s\n", heading(cfg.Database.Name), cfg.SchemaFile)
		stop := progressBars(e)
		report, err := e.SyncDatabase(ctx)
		stop()
		if report != nil {
			printSyncReport(report)
		}
		return err
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)
}

func printSyncReport(r *engine.SyncReport) {
	p := r.Plan
	if p != nil {
		fmt.Println()
		fmt.Println(heading("Plan"))
		if p.IsEmpty() {
			fmt.Println("  " + success("schema is up to date"))
		}
		for _, t := range p.TablesToCreate {
			fmt.Printf("  %s %s\n", success("+"), t.Name)
		}
		for _, t := range p.TablesToDrop {
			fmt.Printf("  %s %s\n", failure("-"), t)
		}
		for _, m := range p.MissingColumns {
			fmt.Printf("  %s %s.%s\n", warning("~"), m.Table, m.Column.Name)
		}
		if len(p.ViewsToRecreate) > 0 {
			fmt.Printf("  %s %d view(s) recreated\n", faint("*"), len(p.ViewsToRecreate))
		}
	}
	for _, u := range r.Unsupported {
		fmt.Printf("  %s %s\n", warning("!"), u)
	}
	printResult("Statements", r.Result)
}
