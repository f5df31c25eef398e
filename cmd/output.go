package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/schoolshare/dss-geo/internal/model"
)

// printer formats numbers with thousands separators in human output.
var printer = message.NewPrinter(language.English)

// writeStructured writes v as JSON or YAML. ok is false for any other format,
// which callers render as a table.
func writeStructured(w io.Writer, format string, v any) (ok bool, err error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return true, eris.Wrap(err, "encode json")
		}
		return true, nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, eris.Wrap(err, "encode yaml")
		}
		return true, enc.Close()
	}
	return false, nil
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return eris.Errorf("unsupported --format %q (want one of %v)", format, allowed)
}

// parseKey reads the --state and --service flag values.
func parseKey(state, service string) (model.Key, error) {
	svc, err := model.ParseService(service)
	if err != nil {
		return model.Key{}, err
	}
	st, err := model.ParseState(state)
	if err != nil {
		return model.Key{}, err
	}
	return model.NewKey(st, svc), nil
}

// optKM formats an optional distance in meters as kilometres.
func optKM(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return printer.Sprintf("%.2f km", *v/1000)
}

func optPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return printer.Sprintf("%.1f%%", *v*100)
}
