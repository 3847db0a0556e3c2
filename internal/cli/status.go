package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show the current healing stage of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		state, err := db.Current(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "project %s: %s", state.ProjectID, state.Stage)
		if !state.UpdatedAt.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), " (since %s)", state.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(cmd.OutOrStdout())

		showEvents, _ := cmd.Flags().GetBool("events")
		if !showEvents {
			return nil
		}
		events, err := db.Events(cmd.Context(), args[0], 20)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n", e.Timestamp, e.Stage)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("events", false, "also print the recent stage audit trail")
}
