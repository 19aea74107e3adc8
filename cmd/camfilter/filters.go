package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-camfilter/internal/httpc"
	"github.com/teslashibe/go-camfilter/pkg/filter"
)

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List the filters the selection control offers",
	Long: `List the filters in control order. The entry marked * is the default,
or the current selection when --server is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagServer != "" {
			return listRemote(cmd.Context())
		}
		if f := cmd.Flags(); f.Changed("filters") {
			cfg.Filters, _ = f.GetString("filters")
		}
		set, err := filter.ParseSet(cfg.Filters)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "\tINDEX\tNAME\tOPERATION")
		for i, id := range set.IDs() {
			printFilter(w, i, id.String(), id.Operation(), id == filter.Normal)
		}
		return w.Flush()
	},
}

var selectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Change the filter on a running preview server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagServer == "" {
			return fmt.Errorf("--server is required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		sel, err := httpc.New(flagServer, requestTimeout).SetFilter(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (index %d)\n", sel.Filter, sel.Index)
		return nil
	},
}

func init() {
	filtersCmd.Flags().String("filters", "noir", "filter set: noir, invert, all, or a comma separated list of names")
	addServerFlag(filtersCmd)
	addServerFlag(selectCmd)
	rootCmd.AddCommand(filtersCmd)
	rootCmd.AddCommand(selectCmd)
}

func listRemote(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	list, err := httpc.New(flagServer, requestTimeout).Filters(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "\tINDEX\tNAME\tOPERATION")
	for _, f := range list.Filters {
		printFilter(w, f.Index, f.Name, f.Operation, f.Name == list.Current)
	}
	return w.Flush()
}

func printFilter(w *tabwriter.Writer, index int, name, op string, marked bool) {
	mark := ""
	if marked {
		mark = "*"
	}
	if op == "" {
		op = "-"
	}
	fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", mark, index, name, op)
}
