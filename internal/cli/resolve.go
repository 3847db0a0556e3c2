package cli

import (
	"errors"
	"fmt"

	"github.com/lveselov/remedy/internal/healing"
	"github.com/lveselov/remedy/internal/logging"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <project-id>",
	Short: "Run one healing attempt for a project",
	Long: `Run a full healing attempt synchronously: collect diagnostics, localize the
failure with the inference service, commit generated patches to a fix branch,
rebuild, and persist a deployment report. Exits non-zero when the attempt
ends in failure, printing the stage at which it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()
		defer func() { _ = log.Sync() }()

		svc, err := buildServices(log)
		if err != nil {
			return err
		}
		defer svc.db.Close()

		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = svc.cfg.Server.Token
		}

		report, err := svc.orchestrator.Run(cmd.Context(), args[0], token)
		if err != nil {
			var stageErr *healing.StageError
			if errors.As(err, &stageErr) {
				return fmt.Errorf("attempt stopped at stage %s: %w", stageErr.Stage, stageErr.Err)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "attempt %s finished: %s\n", report.AttemptID, report.Status)
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", report.Title)
		fmt.Fprintf(cmd.OutOrStdout(), "  branch: %s\n", report.Branch)
		if report.MergeRequestURL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  merge request: %s\n", report.MergeRequestURL)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().String("token", "", "caller credential (defaults to the configured service token)")
}
