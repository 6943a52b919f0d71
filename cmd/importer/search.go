package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

func newSearchCmd(f *rootFlags) *cobra.Command {
	var (
		filter     storage.SearchFilter
		minBalance float64
		maxBalance float64
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search imported properties",
		Args:  cobra.NoArgs,
	}
	fl := cmd.Flags()
	fl.StringVar(&filter.OwnerName, "owner", "", "owner name substring (case-insensitive)")
	fl.StringVar(&filter.City, "city", "", "owner city substring (case-insensitive)")
	fl.StringVar(&filter.PropertyType, "type", "", "exact property type")
	fl.Float64Var(&minBalance, "min-balance", 0, "minimum current cash balance")
	fl.Float64Var(&maxBalance, "max-balance", 0, "maximum current cash balance")
	fl.IntVar(&filter.Limit, "limit", storage.DefaultSearchLimit, "maximum results")
	fl.BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	cmd.RunE = withApp(f, func(cmd *cobra.Command, a *app) error {
		if cmd.Flags().Changed("min-balance") {
			filter.MinBalance = &minBalance
		}
		if cmd.Flags().Changed("max-balance") {
			filter.MaxBalance = &maxBalance
		}
		props, err := a.repo.Search(cmd.Context(), filter)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(props)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tOWNER\tCITY\tTYPE\tBALANCE\tHOLDER")
		for _, p := range props {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.OwnerName, domain.Deref(p.OwnerCity), p.PropertyType, p.CurrentCashBalance.StringFixed(2), p.HolderName)
		}
		return tw.Flush()
	})
	return cmd
}
