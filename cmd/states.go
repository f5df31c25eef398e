package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schoolshare/dss-geo/internal/model"
)

var (
	statesService string
	statesFormat  string
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List states with a complete artifact set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkFormat(statesFormat, "table", "json", "yaml"); err != nil {
			return err
		}
		svc, err := model.ParseService(statesService)
		if err != nil {
			return err
		}
		s, err := newService("compose")
		if err != nil {
			return err
		}

		states := s.ListAvailableStates(svc)
		if ok, err := writeStructured(os.Stdout, statesFormat, states); ok {
			return err
		}
		formatStates(os.Stdout, svc, states)
		return nil
	},
}

func init() {
	statesCmd.Flags().StringVar(&statesService, "service", "arts", "service kind (arts, hospital)")
	statesCmd.Flags().StringVar(&statesFormat, "format", "table", "output format (table, json, yaml)")
	rootCmd.AddCommand(statesCmd)
}

func formatStates(out io.Writer, svc model.Service, states []model.State) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIPS\tABBR\tNAME")
	_, _ = fmt.Fprintln(w, "----\t----\t----")
	for _, s := range states {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.FIPS, s.Abbr, s.Name)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d states available for %s\n", len(states), svc.Label())
}
