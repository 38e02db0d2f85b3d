package main

import (
	"os"
	"path/filepath"

	"github.com/briiC/docxfill"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var convertFlags struct {
	out string
}

var convertCmd = &cobra.Command{
	Use:   "convert DATA.json...",
	Short: "Convert JSON data files to keyword workbooks",
	Example: `  docxfill convert people.json
  docxfill convert --out sheets/ a.json b.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertFlags.out, "out", "o", "", "Output directory (default: next to data file)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if convertFlags.out != "" {
		if err := os.MkdirAll(convertFlags.out, 0o755); err != nil {
			return err
		}
	}

	var errs error
	for _, src := range args {
		dir := convertFlags.out
		if dir == "" {
			dir = filepath.Dir(src)
		}
		base := filepath.Base(src)
		output := filepath.Join(dir, base[:len(base)-len(filepath.Ext(base))]+".xlsx")

		written, err := docxfill.ConvertJSONToXLSX(src, output)
		for _, fpath := range written {
			color.Green("  OK    %s", fpath)
		}
		if err != nil {
			logger.Error("convert failed", zap.String("data", src), zap.Error(err))
			color.Red("  FAIL  %s: %s", src, err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
