package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show healing attempt outcomes per project",
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

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no healing attempts recorded")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %10s %10s\n", "PROJECT", "SUCCEEDED", "FAILED")
		for _, s := range stats {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %10d %10d\n", s.ProjectID, s.Succeeded, s.Failed)
		}
		return nil
	},
}
