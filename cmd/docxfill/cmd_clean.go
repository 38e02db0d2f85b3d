package main

import (
	"github.com/briiC/docxfill"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanFlags struct {
	keepComments bool
	keepControls bool
}

var cleanCmd = &cobra.Command{
	Use:   "clean IN OUT",
	Short: "Remove comments, marking colour and content controls",
	Args:  cobra.ExactArgs(2),
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanFlags.keepComments, "keep-comments", false, "Keep comments and coloured text")
	cleanCmd.Flags().BoolVar(&cleanFlags.keepControls, "keep-controls", false, "Keep content controls")
}

func runClean(cmd *cobra.Command, args []string) error {
	d, err := docxfill.OpenDocument(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	stats, err := docxfill.Clean(d, docxfill.CleanOptions{
		Comments: !cleanFlags.keepComments,
		Controls: !cleanFlags.keepControls,
		Color:    cfg.Color,
	}, logger)
	if err != nil {
		return err
	}
	if err := d.Save(args[1]); err != nil {
		return err
	}

	color.Green("%s: %d comment(s), %d control(s) removed",
		args[1], stats.CommentsRemoved, stats.ControlsUnwrapped)
	return nil
}
