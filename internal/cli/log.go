package cli

import (
	"fmt"
	"strconv"

	"github.com/lveselov/remedy/internal/buildlog"
	"github.com/lveselov/remedy/internal/logging"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <project-id> <build-number>",
	Short: "Fetch a build's console log and print its parsed steps",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid build number %q", args[1])
		}

		log := logging.New()
		defer func() { _ = log.Sync() }()

		svc, err := buildServices(log)
		if err != nil {
			return err
		}
		defer svc.db.Close()

		project, err := svc.db.Project(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		console, err := svc.jenkins.ConsoleLog(cmd.Context(), project.JenkinsJob, number)
		if err != nil {
			return err
		}

		steps := buildlog.Parse(console)
		if len(steps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no pipeline stages found in console log")
			return nil
		}
		for _, step := range steps {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-30s %s\n", step.Seq, step.Name, step.Duration)
			for _, echo := range step.Echoes {
				fmt.Fprintf(cmd.OutOrStdout(), "      %d) %s\n", echo.Seq, echo.Content)
			}
		}
		return nil
	},
}
