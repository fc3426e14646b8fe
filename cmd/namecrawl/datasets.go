package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/use-agent/namecrawl/datasets"
	"github.com/use-agent/namecrawl/store"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the known datasets and whether they have been merged",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return formatDatasets(cmd.OutOrStdout(), a.registry, a.store)
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}

func formatDatasets(w io.Writer, reg *datasets.Registry, st *store.Store) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTRATEGY\tFIELDS\tMERGED\tSOURCE")
	for _, name := range reg.Names() {
		d, err := reg.Get(name)
		if err != nil {
			return err
		}
		merged, err := st.Exists(d.OutputName())
		if err != nil {
			return err
		}
		mark := "no"
		if merged {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.Name, d.Strategy.Name(), strings.Join(d.Fields, ","), mark, d.Source)
	}
	return tw.Flush()
}
