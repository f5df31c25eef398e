package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schoolshare/dss-geo/internal/catalog"
	"github.com/schoolshare/dss-geo/internal/model"
)

var (
	artifactsState   string
	artifactsService string
	artifactsFormat  string
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Show which artifacts a state has on disk",
	Long:  "Resolves the facility, pairing, coverage and summary files for one state and service. Exits non-zero when the set is incomplete.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkFormat(artifactsFormat, "table", "json", "yaml"); err != nil {
			return err
		}
		key, err := parseKey(artifactsState, artifactsService)
		if err != nil {
			return err
		}
		s, err := newService("compose")
		if err != nil {
			return err
		}

		a, resolveErr := s.Artifacts(key)
		report := artifactReport{Key: key, Available: resolveErr == nil, Rate: a.Rate, Artifacts: a.Entries()}
		if ok, err := writeStructured(os.Stdout, artifactsFormat, report); ok {
			if err != nil {
				return err
			}
			return resolveErr
		}
		formatArtifacts(os.Stdout, report)
		return resolveErr
	},
}

func init() {
	artifactsCmd.Flags().StringVar(&artifactsState, "state", "", "state abbreviation, FIPS code or name")
	artifactsCmd.Flags().StringVar(&artifactsService, "service", "arts", "service kind (arts, hospital)")
	artifactsCmd.Flags().StringVar(&artifactsFormat, "format", "table", "output format (table, json, yaml)")
	_ = artifactsCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(artifactsCmd)
}

type artifactReport struct {
	Key       model.Key       `json:"key" yaml:"key"`
	Available bool            `json:"available" yaml:"available"`
	Rate      int             `json:"rate,omitempty" yaml:"rate,omitempty"`
	Artifacts []catalog.Entry `json:"artifacts" yaml:"artifacts"`
}

func formatArtifacts(out io.Writer, r artifactReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tSTATUS\tPATH")
	_, _ = fmt.Fprintln(w, "----\t------\t----")
	for _, e := range r.Artifacts {
		status := "ok"
		switch {
		case e.Present:
		case e.Kind == catalog.KindSummary:
			status = "absent"
		default:
			status = "MISSING"
		}
		path := e.Path
		if path == "" {
			path = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind, status, path)
	}
	_ = w.Flush()

	verdict := "complete"
	if !r.Available {
		verdict = "incomplete"
	}
	_, _ = fmt.Fprintf(out, "\n%s, %s: artifact set %s", r.Key.State.Name, r.Key.Service.Label(), verdict)
	if r.Rate > 0 {
		_, _ = fmt.Fprintf(out, " (coverage at p=%d%%)", r.Rate)
	}
	_, _ = fmt.Fprintln(out)
}
