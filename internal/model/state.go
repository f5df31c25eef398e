// Package model holds the data types shared across the loaders, the cache and
// the composer.
package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// State identifies a US state (or DC) by FIPS code, postal abbreviation and
// display name.
type State struct {
	FIPS string `json:"fips" yaml:"fips"`
	Abbr string `json:"abbr" yaml:"abbr"`
	Name string `json:"name" yaml:"name"`
}

func (s State) String() string {
	return s.Abbr + "_" + s.FIPS
}

// IsZero reports whether s is the zero State.
func (s State) IsZero() bool { return s.FIPS == "" }

// states lists the 50 states plus DC.
var states = []State{
	{"01", "AL", "Alabama"}, {"02", "AK", "Alaska"}, {"04", "AZ", "Arizona"},
	{"05", "AR", "Arkansas"}, {"06", "CA", "California"}, {"08", "CO", "Colorado"},
	{"09", "CT", "Connecticut"}, {"10", "DE", "Delaware"}, {"11", "DC", "District of Columbia"},
	{"12", "FL", "Florida"}, {"13", "GA", "Georgia"}, {"15", "HI", "Hawaii"},
	{"16", "ID", "Idaho"}, {"17", "IL", "Illinois"}, {"18", "IN", "Indiana"},
	{"19", "IA", "Iowa"}, {"20", "KS", "Kansas"}, {"21", "KY", "Kentucky"},
	{"22", "LA", "Louisiana"}, {"23", "ME", "Maine"}, {"24", "MD", "Maryland"},
	{"25", "MA", "Massachusetts"}, {"26", "MI", "Michigan"}, {"27", "MN", "Minnesota"},
	{"28", "MS", "Mississippi"}, {"29", "MO", "Missouri"}, {"30", "MT", "Montana"},
	{"31", "NE", "Nebraska"}, {"32", "NV", "Nevada"}, {"33", "NH", "New Hampshire"},
	{"34", "NJ", "New Jersey"}, {"35", "NM", "New Mexico"}, {"36", "NY", "New York"},
	{"37", "NC", "North Carolina"}, {"38", "ND", "North Dakota"}, {"39", "OH", "Ohio"},
	{"40", "OK", "Oklahoma"}, {"41", "OR", "Oregon"}, {"42", "PA", "Pennsylvania"},
	{"44", "RI", "Rhode Island"}, {"45", "SC", "South Carolina"}, {"46", "SD", "South Dakota"},
	{"47", "TN", "Tennessee"}, {"48", "TX", "Texas"}, {"49", "UT", "Utah"},
	{"50", "VT", "Vermont"}, {"51", "VA", "Virginia"}, {"53", "WA", "Washington"},
	{"54", "WV", "West Virginia"}, {"55", "WI", "Wisconsin"}, {"56", "WY", "Wyoming"},
}

var (
	byFIPS = make(map[string]State, len(states))
	byAbbr = make(map[string]State, len(states))
	byName = make(map[string]State, len(states))
)

func init() {
	for _, s := range states {
		byFIPS[s.FIPS] = s
		byAbbr[s.Abbr] = s
		byName[strings.ToLower(s.Name)] = s
	}
}

// StateByFIPS looks up a state by its 2-digit FIPS code.
func StateByFIPS(fips string) (State, bool) {
	s, ok := byFIPS[fips]
	return s, ok
}

// StateByAbbr looks up a state by postal abbreviation (case-insensitive).
func StateByAbbr(abbr string) (State, bool) {
	s, ok := byAbbr[strings.ToUpper(abbr)]
	return s, ok
}

// ParseState resolves a FIPS code, postal abbreviation or full state name.
func ParseState(v string) (State, error) {
	v = strings.TrimSpace(v)
	if s, ok := byFIPS[v]; ok {
		return s, nil
	}
	if len(v) == 1 {
		if s, ok := byFIPS["0"+v]; ok {
			return s, nil
		}
	}
	if s, ok := byAbbr[strings.ToUpper(v)]; ok {
		return s, nil
	}
	if s, ok := byName[strings.ToLower(v)]; ok {
		return s, nil
	}
	return State{}, eris.Errorf("model: unknown state %q", v)
}

// AllStates returns every known state sorted by FIPS code.
func AllStates() []State {
	out := make([]State, len(states))
	copy(out, states)
	sort.Slice(out, func(i, j int) bool { return out[i].FIPS < out[j].FIPS })
	return out
}
