package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/sources"
)

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sources",
		Aliases: []string{"ls"},
		Short:   "List the built-in source definitions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := sources.Default()
			if err != nil {
				return err
			}

			bold := color.New(color.Bold).SprintFunc()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range catalog.Names() {
				def, _ := catalog.Lookup(name)
				fmt.Fprintf(tw, "%s\t%s\n", bold(name), def.Description)
			}
			return tw.Flush()
		},
	}
}
