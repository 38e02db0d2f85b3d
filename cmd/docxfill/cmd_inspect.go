package main

import (
	"fmt"

	"github.com/briiC/docxfill"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect TEMPLATE",
	Short: "List placeholders of template",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	d, err := docxfill.OpenDocument(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	locator := docxfill.NewLocator(logger)
	count := 0
	for p, err := range locator.All(d) {
		if err != nil {
			color.Red("  %v", err)
			continue
		}
		count++
		color.New(color.FgCyan, color.Bold).Printf("%-24s", p.Tag)
		fmt.Printf(" %-7s %-6s %q", p.Location, p.Shape, p.Text())
		if p.Title != "" {
			color.New(color.Faint).Printf("  (%s)", p.Title)
		}
		fmt.Println()
	}
	color.Green("%d placeholder(s)", count)
	return nil
}
