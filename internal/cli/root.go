package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	version = "dev"
)

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "remedy",
	Short: "remedy — self-healing CI/CD resolution service",
	Long: `remedy watches over Jenkins builds of GitLab-hosted projects. When a build
fails, it collects the console log, the latest diff and the deployed
application set, asks an inference service to localize and patch the failure,
commits the patches to a fix branch, rebuilds, and reports the outcome.

State (projects, healing progress, deployment reports) lives in SQLite.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config YAML (default: ./remedy.yaml, ~/.remedy/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(statsCmd)
}
