package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odant/conan-freeimage/internal/build"
	"github.com/odant/conan-freeimage/recipe"
)

var (
	matrixRequire []string
	matrixOptions []string
	matrixDryRun  bool
	matrixForce   bool
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Build the package for every configuration of a matrix",
	Long: `Matrix expands the cartesian product of settings from the profile and the
--require/--option flags, and builds each configuration in turn. A failed
configuration does not stop the others.`,
	Example: `  fipkg matrix --require build_type=Debug,Release --require arch=x86_64,x86
  fipkg matrix --config windows.yaml --option dll_sign=True,False --dry-run`,
	Args: cobra.NoArgs,
	RunE: runMatrix,
}

func init() {
	matrixCmd.Flags().StringArrayVar(&matrixRequire, "require", nil, "Setting and its values, key=v1,v2 (repeatable)")
	matrixCmd.Flags().StringArrayVar(&matrixOptions, "option", nil, "Option and its values, key=v1,v2 (repeatable)")
	matrixCmd.Flags().BoolVar(&matrixDryRun, "dry-run", false, "Print the configurations without building")
	matrixCmd.Flags().BoolVarP(&matrixForce, "force", "f", false, "Rebuild published packages")
	rootCmd.AddCommand(matrixCmd)
}

// parseAxes parses key=v1,v2 arguments into matrix axes, adding to m.
func parseAxes(m map[string][]string, args []string) (map[string][]string, error) {
	for _, arg := range args {
		key, values, ok := strings.Cut(arg, "=")
		if !ok || key == "" || values == "" {
			return nil, fmt.Errorf("invalid matrix axis %q, want key=v1,v2", arg)
		}
		if m == nil {
			m = make(map[string][]string)
		}
		m[key] = strings.Split(values, ",")
	}
	return m, nil
}

func buildMatrix() (recipe.Matrix, error) {
	m := recipe.Matrix{
		Require: copyAxes(profile.Matrix.Require),
		Options: copyAxes(profile.Matrix.Options),
	}
	var err error
	if m.Require, err = parseAxes(m.Require, matrixRequire); err != nil {
		return m, err
	}
	if m.Options, err = parseAxes(m.Options, matrixOptions); err != nil {
		return m, err
	}
	return m, nil
}

func copyAxes(axes map[string][]string) map[string][]string {
	if axes == nil {
		return nil
	}
	out := make(map[string][]string, len(axes))
	for k, v := range axes {
		out[k] = v
	}
	return out
}

func runMatrix(cmd *cobra.Command, args []string) error {
	m, err := buildMatrix()
	if err != nil {
		return err
	}
	if m.CombinationCount() == 0 {
		return errors.New("empty matrix: give --require or --option, or a profile matrix")
	}
	all, err := m.Settings(profile.Settings)
	if err != nil {
		return err
	}
	combos := m.Combinations()
	out := cmd.OutOrStdout()

	if matrixDryRun {
		for i, s := range all {
			cfg, err := s.Resolve()
			if err != nil {
				fmt.Fprintf(out, "%s\tinvalid: %v\n", combos[i], err)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", combos[i], cfg)
		}
		return nil
	}

	builder, err := newBuilder(profile)
	if err != nil {
		return err
	}
	src, err := sourceDir(cmd.Context(), profile)
	if err != nil {
		return err
	}

	var errs []error
	for i, s := range all {
		cfg, err := s.Resolve()
		if err == nil {
			var res *build.Result
			if res, err = builder.Build(cmd.Context(), cfg, src, matrixForce); err == nil {
				fmt.Fprintf(out, "%s\t%s\n", combos[i], res.Dir)
				continue
			}
		}
		slog.Error("configuration failed", "combination", combos[i], "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", combos[i], err))
	}
	if len(errs) > 0 {
		slog.Error("matrix incomplete", "failed", len(errs), "total", len(all))
	}
	return errors.Join(errs...)
}
