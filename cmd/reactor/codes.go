package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

func codesCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "codes [code...]",
		Short: "List diagnostic codes or explain one",
		Long: `List every diagnostic code reported by the runtime, the config loader
and the timeline stores. With arguments, print the full explanation of
each code.

Examples:
  reactor codes
  reactor codes R001 C004`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			g.applyColor()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listCodes(cmd.OutOrStdout())
				return nil
			}
			return explainCodes(cmd.OutOrStdout(), args)
		},
	}
}

func listCodes(out io.Writer) {
	for _, code := range rerrors.GetAllCodes() {
		tmpl, _ := rerrors.GetTemplate(code)
		fmt.Fprintf(out, "%-10s %s\n", tmpl.Category, rerrors.New(code).FormatCompact())
	}
}

func explainCodes(out io.Writer, codes []string) error {
	for _, code := range codes {
		code = strings.ToUpper(code)
		if _, ok := rerrors.GetTemplate(code); !ok {
			return rerrors.Newf(rerrors.CategoryCLI, "Unknown diagnostic code %q", code).
				WithSuggestion("Run 'reactor codes' for the list.")
		}
		fmt.Fprint(out, rerrors.New(code).Format())
	}
	return nil
}
