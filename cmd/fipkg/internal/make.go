package internal

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	makeSettings settingsFlags
	makeForce    bool
	makeOutput   string
	makeSource   string
)

var makeCmd = &cobra.Command{
	Use:   "make",
	Short: "Build the package for one configuration",
	Long: `Make builds FreeImage for the configuration given by the flags and the
profile, and publishes the package into the workspace. A configuration that
is already published is reused unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runMake,
}

func init() {
	makeSettings.register(makeCmd)
	makeCmd.Flags().BoolVarP(&makeForce, "force", "f", false, "Rebuild even if the package is published")
	makeCmd.Flags().StringVarP(&makeOutput, "output", "o", "", "Export the package (directory, .zip or .tar.xz)")
	makeCmd.Flags().StringVar(&makeSource, "source", "", "Build an existing source tree instead of fetching")
	rootCmd.AddCommand(makeCmd)
}

func runMake(cmd *cobra.Command, args []string) error {
	cfg, err := makeSettings.resolve()
	if err != nil {
		return err
	}
	if makeSource != "" {
		profile.Source.Dir = makeSource
	}
	if makeOutput != "" {
		if makeOutput, err = filepath.Abs(makeOutput); err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
	}

	ctx := cmd.Context()
	builder, err := newBuilder(profile)
	if err != nil {
		return err
	}
	src, err := sourceDir(ctx, profile)
	if err != nil {
		return err
	}
	res, err := builder.Build(ctx, cfg, src, makeForce)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", cfg, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Dir)
	if makeOutput != "" {
		if err := exportPackage(res.Dir, makeOutput); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
