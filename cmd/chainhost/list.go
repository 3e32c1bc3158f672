package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [query]",
		Short: "List cataloged plugins, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			known, err := a.loadKnown()
			if err != nil {
				return err
			}

			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			found := known.Find(query)
			if len(found) == 0 {
				if known.Len() == 0 {
					fmt.Fprintln(a.stderr, "catalog is empty, run chainhost scan first")
				}

				return nil
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "IDENTIFIER\tNAME\tVERSION\tCATEGORY\tI/O")

			for _, d := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n",
					d.Identifier(), d.Name, d.Version, d.Category, d.NumInputs, d.NumOutputs)
			}

			return tw.Flush()
		},
	}
}
