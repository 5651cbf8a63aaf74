package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odant/conan-freeimage/internal/builderr"
	"github.com/odant/conan-freeimage/internal/config"
	"github.com/odant/conan-freeimage/internal/env"
)

var (
	verbose     bool
	profilePath string
	envFiles    []string
	workspace   string
)

// profile is loaded before any subcommand runs.
var profile *config.Profile

var rootCmd = &cobra.Command{
	Use:   "fipkg",
	Short: "fipkg builds and packages the FreeImage library",
	Long: `fipkg fetches, patches and compiles FreeImage with the native toolchain
of a build configuration, then packages headers, libraries and binaries with
metadata for downstream build systems.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and native tool output")
	flags.StringVar(&profilePath, "config", "", "Build profile (YAML)")
	flags.StringArrayVar(&envFiles, "env-file", nil, "Load variables from a .env file (repeatable)")
	flags.StringVar(&workspace, "workspace", "", "Workspace directory (default <user cache>/.fipkg)")
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	if profilePath != "" {
		profile, err = config.Load(profilePath)
		if err != nil {
			return err
		}
	} else {
		profile = config.Default()
	}
	if workspace != "" {
		profile.Workspace = workspace
	}

	files := append(append([]string{}, profile.Sign.EnvFiles...), envFiles...)
	loaded, err := env.LoadDotEnv(files...)
	if err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	for _, f := range loaded {
		slog.Debug("loaded env file", "file", f)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fipkg:", err)
		os.Exit(builderr.ExitCode(err))
	}
}
