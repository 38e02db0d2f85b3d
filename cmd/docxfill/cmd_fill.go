package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/briiC/docxfill"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var fillFlags struct {
	data        string
	out         string
	name        string
	workers     int
	failMissing bool
	noComments  bool
}

var fillCmd = &cobra.Command{
	Use:   "fill --data FILE TEMPLATE...",
	Short: "Fill templates, one document per data record",
	Example: `  docxfill fill --data people.json --out out/ contract.docx
  docxfill fill --data values.xlsx --name "{template}_{timestamp}" a.docx b.docx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFill,
}

func init() {
	fillCmd.Flags().StringVarP(&fillFlags.data, "data", "d", "", "Data file (.json or .xlsx)")
	fillCmd.Flags().StringVarP(&fillFlags.out, "out", "o", "", "Output directory")
	fillCmd.Flags().StringVar(&fillFlags.name, "name", "", "Output name pattern: {template} {index} {timestamp}")
	fillCmd.Flags().IntVarP(&fillFlags.workers, "workers", "w", 0, "Parallel documents (default: CPU count)")
	fillCmd.Flags().BoolVar(&fillFlags.failMissing, "fail-missing", false, "Fail document when placeholder tag has no value")
	fillCmd.Flags().BoolVar(&fillFlags.noComments, "no-comments", false, "Do not add traceability comments")
	_ = fillCmd.MarkFlagRequired("data")
}

func runFill(cmd *cobra.Command, templates []string) error {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutputDir = fillFlags.out
	}
	if flags.Changed("name") {
		cfg.NamePattern = fillFlags.name
	}
	if flags.Changed("workers") {
		cfg.Workers = fillFlags.workers
	}
	if fillFlags.failMissing {
		cfg.Missing = docxfill.MissingFail.String()
	}
	if fillFlags.noComments {
		cfg.Comments.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	records, err := docxfill.ParseDataFile(fillFlags.data)
	if err != nil {
		return err
	}
	color.Cyan("%d record(s) x %d template(s)", len(records), len(templates))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res := docxfill.NewBatch(cfg, logger).Run(ctx, templates, records)
	printBatch(res)
	return res.Err()
}

func printBatch(res *docxfill.BatchResult) {
	for _, job := range res.Jobs {
		switch {
		case job.Skipped:
			color.Yellow("  SKIP  %s", job.Output)
		case job.Err != nil:
			color.Red("  FAIL  %s: %v", job.Output, job.Err)
		default:
			color.Green("  OK    %s", job.Output)
			for _, tag := range job.Report.Unbound {
				color.Yellow("        unbound: %s", tag)
			}
		}
	}
	color.New(color.Bold).Printf("run %s: %d ok, %d failed, %d skipped\n",
		res.RunID, res.Succeeded, res.Failed, res.Skipped)
}
