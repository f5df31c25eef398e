package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/schoolshare/dss-geo/internal/explorer"
)

var (
	pairingsState   string
	pairingsService string
	pairingsFormat  string
)

var pairingsCmd = &cobra.Command{
	Use:   "pairings",
	Short: "Show which facility each activated school is paired with",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkFormat(pairingsFormat, "table", "csv", "json", "yaml"); err != nil {
			return err
		}
		key, err := parseKey(pairingsState, pairingsService)
		if err != nil {
			return err
		}
		s, err := newService("compose")
		if err != nil {
			return err
		}
		rows, err := s.Pairings(cmd.Context(), key)
		if err != nil {
			return err
		}

		if pairingsFormat == "csv" {
			return writePairingsCSV(os.Stdout, rows)
		}
		if ok, err := writeStructured(os.Stdout, pairingsFormat, rows); ok {
			return err
		}
		formatPairings(os.Stdout, rows)
		return nil
	},
}

func init() {
	pairingsCmd.Flags().StringVar(&pairingsState, "state", "", "state abbreviation, FIPS code or name")
	pairingsCmd.Flags().StringVar(&pairingsService, "service", "arts", "service kind (arts, hospital)")
	pairingsCmd.Flags().StringVar(&pairingsFormat, "format", "table", "output format (table, csv, json, yaml)")
	_ = pairingsCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(pairingsCmd)
}

type pairingRecord struct {
	FacilityID   string  `csv:"Facility ID"`
	FacilityName string  `csv:"Facility Name"`
	SchoolID     string  `csv:"School ID"`
	SchoolName   string  `csv:"School Name"`
	DistanceM    float64 `csv:"Distance (m)"`
}

func writePairingsCSV(out io.Writer, rows []explorer.PairingRow) error {
	recs := make([]pairingRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, pairingRecord{
			FacilityID:   r.FacilityID,
			FacilityName: r.FacilityName,
			SchoolID:     r.SchoolID,
			SchoolName:   r.SchoolName,
			DistanceM:    r.DistanceM,
		})
	}
	b, err := csvutil.Marshal(recs)
	if err != nil {
		return eris.Wrap(err, "pairings: encode csv")
	}
	_, err = out.Write(b)
	return eris.Wrap(err, "pairings: write csv")
}

func formatPairings(out io.Writer, rows []explorer.PairingRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FACILITY\tFACILITY NAME\tSCHOOL\tSCHOOL NAME\tDISTANCE")
	_, _ = fmt.Fprintln(w, "--------\t-------------\t------\t-----------\t--------")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.FacilityID,
			truncate(r.FacilityName, 40),
			r.SchoolID,
			truncate(r.SchoolName, 40),
			printer.Sprintf("%.2f km", r.DistanceM/1000),
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%s facility-school pairings\n", printer.Sprintf("%d", len(rows)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
