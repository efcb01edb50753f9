package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/vstore/internal/errors"
)

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes [code]",
		Short: "List error codes",
		Long: `List the error codes vstore reports, or describe one of them.

Examples:
  vstore codes
  vstore codes V301`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				code := strings.ToUpper(args[0])
				tmpl, ok := errors.GetTemplate(code)
				if !ok {
					return errors.Newf(errors.CategoryCLI, "unknown error code %q", args[0]).
						WithSuggestion("Run `vstore codes` to list them")
				}
				fmt.Fprintf(w, "%s  %s\n", accentStyle.Render(code), tmpl.Message)
				info(w, "category: %s", tmpl.Category)
				if tmpl.Detail != "" {
					info(w, "%s", tmpl.Detail)
				}
				return nil
			}

			for _, code := range errors.GetAllCodes() {
				tmpl, _ := errors.GetTemplate(code)
				fmt.Fprintf(w, "%s  %-10s %s\n", accentStyle.Render(code), tmpl.Category, tmpl.Message)
			}
			return nil
		},
	}
}
