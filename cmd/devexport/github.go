package main

import (
	"github.com/Afrawles/devexport/internal/devexport"
	"github.com/spf13/cobra"
)

var (
	githubToken string
	githubUser  string
	githubOut   devexport.Outputs
)

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Export pull requests, issues, reviews and commits from GitHub",
	RunE:  runGitHub,
}

func init() {
	rootCmd.AddCommand(githubCmd)

	githubCmd.Flags().StringVar(&githubToken, "token", "", "GitHub personal access token (or GITHUB_TOKEN)")
	githubCmd.Flags().StringVar(&githubUser, "user", "", "GitHub login (or DEVEXPORT_GITHUB_USER)")
	githubCmd.Flags().StringVar(&githubOut.Rows, "out", "github_activity.csv", "Output CSV")
	githubCmd.Flags().StringVar(&githubOut.SummaryMD, "summary-md", "github_activity_summary.md", "Markdown summary")
	githubCmd.Flags().StringVar(&githubOut.SummaryCSV, "summary-csv", "", "CSV summary by repository")
}

func runGitHub(cmd *cobra.Command, args []string) error {
	w, err := resolveWindow()
	if err != nil {
		return err
	}

	if githubToken != "" {
		cfg.GitHub.Token = githubToken
	}
	if githubUser != "" {
		cfg.GitHub.User = githubUser
	}
	if err := cfg.ValidateGitHub(); err != nil {
		return err
	}

	src, err := devexport.GitHubSource(cfg, logger)
	if err != nil {
		return err
	}

	return runJob(cmd.Context(), src, w, githubOut)
}
