package internal

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odant/conan-freeimage/internal/vcs"
)

var (
	fetchURL string
	fetchRef string
	fetchDir string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the FreeImage source",
	Long:  `Fetch clones the upstream source at a tag or branch and prints the commit.`,
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "Repository URL (default from profile)")
	fetchCmd.Flags().StringVar(&fetchRef, "ref", "", "Tag or branch (default from profile)")
	fetchCmd.Flags().StringVarP(&fetchDir, "dir", "d", "", "Destination (default in the workspace)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if fetchURL != "" {
		profile.Source.URL = fetchURL
	}
	if fetchRef != "" {
		profile.Source.Ref = fetchRef
	}
	if fetchDir == "" {
		// sourceDir reuses an up to date checkout in the workspace.
		profile.Source.Dir = ""
		dir, err := sourceDir(cmd.Context(), profile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dir)
		return nil
	}

	dir, err := filepath.Abs(fetchDir)
	if err != nil {
		return err
	}
	commit, err := vcs.NewGitFetcher(vcs.WithProgress(toolOutput())).Fetch(cmd.Context(), profile.Source.URL, profile.Source.Ref, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", dir, commit)
	return nil
}
