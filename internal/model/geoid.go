package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

var geoidRe = regexp.MustCompile(`^\d{12}$`)

// NormalizeGEOID trims v and returns the 12-digit block-group GEOID. An
// 11-digit value lost its leading zero to a numeric column type and is padded
// back; anything else is rejected.
func NormalizeGEOID(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) == GEOIDLength-1 {
		v = "0" + v
	}
	if !geoidRe.MatchString(v) {
		return "", eris.Errorf("model: invalid GEOID %q", v)
	}
	return v, nil
}

// GEOIDStateFIPS returns the 2-digit state prefix of a normalized GEOID.
func GEOIDStateFIPS(geoid string) string {
	if len(geoid) < 2 {
		return ""
	}
	return geoid[:2]
}
