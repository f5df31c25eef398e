package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/schoolshare/dss-geo/internal/choropleth"
)

var (
	composeState   string
	composeService string
	composeMetric  string
	composeBins    int
	composeRate    int
	composeFormat  string
	composeOut     string
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose the choropleth layer for a state",
	Long:  "Joins the coverage table with block-group polygons, bins the selected metric and prints the legend and summary statistics, or writes the layer as JSON, YAML or GeoJSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkFormat(composeFormat, "table", "json", "yaml", "geojson"); err != nil {
			return err
		}
		key, err := parseKey(composeState, composeService)
		if err != nil {
			return err
		}
		var opts choropleth.Options
		if composeMetric != "" {
			if opts.Metric, err = choropleth.ParseMetric(composeMetric); err != nil {
				return err
			}
		}
		opts.Bins = composeBins
		opts.Rate = composeRate

		s, err := newService("compose")
		if err != nil {
			return err
		}
		layer, err := s.ComposeLayer(cmd.Context(), key.State, key.Service, opts)
		if err != nil {
			return err
		}

		if composeOut == "" {
			return writeLayer(os.Stdout, composeFormat, layer)
		}
		f, err := os.Create(composeOut)
		if err != nil {
			return eris.Wrap(err, "compose: create output")
		}
		if err := writeLayer(f, composeFormat, layer); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrap(f.Close(), "compose: close output")
	},
}

// writeLayer renders layer to out in format.
func writeLayer(out io.Writer, format string, layer *choropleth.Layer) error {
	if format == "geojson" {
		body, err := layer.GeoJSON()
		if err != nil {
			return err
		}
		_, err = out.Write(append(body, '\n'))
		return eris.Wrap(err, "compose: write geojson")
	}
	if ok, err := writeStructured(out, format, layer); ok {
		return err
	}
	formatLayer(out, layer)
	return nil
}

func init() {
	f := composeCmd.Flags()
	f.StringVar(&composeState, "state", "", "state abbreviation, FIPS code or name")
	f.StringVar(&composeService, "service", "arts", "service kind (arts, hospital)")
	f.StringVar(&composeMetric, "metric", "", "display metric (default from config)")
	f.IntVar(&composeBins, "bins", 0, "number of quantile bins (default from config)")
	f.IntVar(&composeRate, "rate", 0, "activation rate in percent (default from config)")
	f.StringVar(&composeFormat, "format", "table", "output format (table, json, yaml, geojson)")
	f.StringVar(&composeOut, "out", "", "write to this file instead of stdout")
	_ = composeCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(composeCmd)
}

func formatLayer(out io.Writer, l *choropleth.Layer) {
	_, _ = fmt.Fprintf(out, "%s, %s at %d%% activation\n", l.Key.State.Name, l.Key.Service.Label(), l.Rate)
	_, _ = fmt.Fprintf(out, "%s  (layer %s)\n\n", l.Label, l.ID)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BIN\tRANGE\tCOLOR\tCBGS")
	_, _ = fmt.Fprintln(w, "---\t-----\t-----\t----")
	for _, b := range l.Bins {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.Index, b.Label, b.Color, printer.Sprintf("%d", b.Count))
	}
	_ = w.Flush()

	st := l.Stats
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"CBGs joined", printer.Sprintf("%d", st.Joined)},
		{"CBGs excluded (no polygon)", printer.Sprintf("%d", st.Excluded)},
		{"Polygons without coverage", printer.Sprintf("%d", st.UnmatchedPolygons)},
		{"CBGs improved", printer.Sprintf("%d", st.Improved)},
		{"Population", printer.Sprintf("%.0f", st.PopulationTotal)},
		{"Population helped", printer.Sprintf("%.0f", st.PopulationHelped)},
		{"Newly covered CBGs", printer.Sprintf("%d", st.NewlyCovered)},
		{"Newly covered population", printer.Sprintf("%.0f", st.NewlyCoveredPopulation)},
		{"Mean improvement", optKM(st.MeanImprovementM)},
		{"Mean distance before", optKM(st.MeanBaselineDistM)},
		{"Mean distance after", optKM(st.MeanOptimizedDistM)},
		{"Gap closed", optPct(st.GapClosed)},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
	}
	_ = w.Flush()
}
