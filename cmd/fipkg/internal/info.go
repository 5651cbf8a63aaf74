package internal

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/odant/conan-freeimage/internal/metadata"
)

var (
	infoSettings settingsFlags
	infoAll      bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show a published package",
	Long: `Info prints the manifest of the package published for the configuration
given by the flags and the profile. With --all it lists every published
package instead.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoSettings.register(infoCmd)
	infoCmd.Flags().BoolVarP(&infoAll, "all", "a", false, "List all published packages")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	builder, err := newBuilder(profile)
	if err != nil {
		return err
	}
	r, c := builder.Recipe, builder.Cache
	out := cmd.OutOrStdout()

	if infoAll {
		idx, err := c.Load(r.Name)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tCONFIG\tBUILT\tDIR")
		for _, e := range idx.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Version, e.Config, e.BuildTime.Local().Format("2006-01-02 15:04"), e.Dir)
		}
		return w.Flush()
	}

	cfg, err := infoSettings.resolve()
	if err != nil {
		return err
	}
	version, err := r.UpstreamVersion()
	if err != nil {
		return err
	}
	e, ok, err := c.Lookup(r.Name, version, cfg.String())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s is not built for %s", r.Name, version, cfg)
	}
	pkg, err := metadata.Read(e.Dir)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(pkg); err != nil {
		return err
	}
	return enc.Close()
}
