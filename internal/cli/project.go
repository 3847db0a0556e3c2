package cli

import (
	"fmt"

	"github.com/lveselov/remedy/internal/healing"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage registered projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <project-id>",
	Short: "Register or update a project",
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

		name, _ := cmd.Flags().GetString("name")
		gitlabID, _ := cmd.Flags().GetString("gitlab-id")
		job, _ := cmd.Flags().GetString("jenkins-job")
		branch, _ := cmd.Flags().GetString("default-branch")
		apps, _ := cmd.Flags().GetStringSlice("apps")

		if name == "" {
			name = args[0]
		}
		if gitlabID == "" || job == "" {
			return fmt.Errorf("--gitlab-id and --jenkins-job are required")
		}

		project := &healing.Project{
			ID:            args[0],
			Name:          name,
			GitLabID:      gitlabID,
			JenkinsJob:    job,
			DefaultBranch: branch,
			Applications:  apps,
		}
		if err := db.UpsertProject(cmd.Context(), project); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %s registered (%d apps)\n", project.ID, len(apps))
		return nil
	},
}

func init() {
	projectAddCmd.Flags().String("name", "", "display name (defaults to the id)")
	projectAddCmd.Flags().String("gitlab-id", "", "GitLab project id or path")
	projectAddCmd.Flags().String("jenkins-job", "", "Jenkins job name")
	projectAddCmd.Flags().String("default-branch", "main", "branch healing attempts are based on")
	projectAddCmd.Flags().StringSlice("apps", nil, "deployed application names")
	projectCmd.AddCommand(projectAddCmd)
}
