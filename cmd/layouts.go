package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/aerocodes/internal/nasr"
)

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "Print the active source layouts as a layout file",
	Long:  "Prints the layouts the build would use, in the format accepted by source.layout_file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		layouts, err := initLayouts()
		if err != nil {
			return err
		}
		return writeLayouts(os.Stdout, layouts)
	},
}

func writeLayouts(out io.Writer, layouts []nasr.Layout) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	doc := struct {
		Sources []nasr.Layout `yaml:"sources"`
	}{Sources: layouts}
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "layouts: encode")
	}
	return eris.Wrap(enc.Close(), "layouts: encode")
}

func init() {
	rootCmd.AddCommand(layoutsCmd)
}
