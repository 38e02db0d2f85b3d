package main

import (
	"errors"

	"github.com/briiC/docxfill"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check DATA.xlsx",
	Short: "Check keyword workbook layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	check, err := docxfill.CheckXLSX(args[0])
	if err != nil {
		return err
	}

	color.Cyan("%d row(s), %d keyword(s)", check.Rows, check.Keywords)
	for _, s := range check.InvalidKeywords {
		color.Yellow("  not #keyword#: %s", s)
	}
	for _, s := range check.EmptyValues {
		color.Yellow("  empty value: %s", s)
	}
	for _, s := range check.DuplicateKeywords {
		color.Red("  duplicate: %s", s)
	}

	if !check.Valid() {
		return errors.New("workbook is not usable as data file")
	}
	color.Green("OK")
	return nil
}
