package results

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/dataerr"
	"github.com/schoolshare/dss-geo/internal/model"
	"github.com/schoolshare/dss-geo/internal/tabular"
)

const opSummary = "results: load summary"

// Row labels of the transposed summary table.
const (
	rowCBGs         = "|I|"
	rowSchools      = "|J|"
	rowFacilities   = "|Q|"
	rowPrimaryDist  = "delta1 threshold"
	rowSecondDist   = "delta2 threshold"
	rowOpened       = "num facility to open"
	rowPrimaryCov   = "Primary coverage"
	rowSecondaryCov = "Secondary coverage"
	rowAvgDist      = "Customer Avg dist to fac"
	rowMaxDist      = "Customer Max dist to fac"
	rowMinDist      = "Customer Min dist to fac"
	rowNonwhite     = "Nonwhite % (secondary cover)"
	rowNonBach      = "NonBach % (secondary cover)"
	rowTime         = "Total Time (sec)"
	rowOpenedIDs    = "open facility NCESSCH"
)

const colExisting = "existing"

var scenarioCol = regexp.MustCompile(`^p=(\d+)%$`)

// summaryTable is the transposed table indexed by row label and column name.
type summaryTable struct {
	cols map[string]int
	rows map[string][]string
}

func (t summaryTable) cell(row, col string) (string, bool) {
	fields, ok := t.rows[row]
	if !ok {
		return "", false
	}
	i, ok := t.cols[col]
	if !ok || i >= len(fields) {
		return "", false
	}
	return strings.TrimSpace(fields[i]), true
}

func (t summaryTable) float(row, col string) (float64, error) {
	v, ok := t.cell(row, col)
	if !ok {
		return 0, eris.Errorf("results: summary has no %q for %s", row, col)
	}
	f, err := tabular.ParseFloat(v)
	if err != nil {
		return 0, eris.Wrapf(err, "results: summary %q for %s", row, col)
	}
	return f, nil
}

func (t summaryTable) count(row, col string) (int, error) {
	v, ok := t.cell(row, col)
	if !ok {
		return 0, eris.Errorf("results: summary has no %q for %s", row, col)
	}
	n, err := tabular.ParseCount(v)
	if err != nil {
		return 0, eris.Wrapf(err, "results: summary %q for %s", row, col)
	}
	return n, nil
}

// optional returns nil when the cell is absent or not a number.
func (t summaryTable) optional(row, col string) *float64 {
	f, err := t.float(row, col)
	if err != nil {
		return nil
	}
	return &f
}

// LoadSummary parses the transposed per-state summary table. It is optional:
// a missing file is DataUnavailable and affects only the summary view.
func (l *Loader) LoadSummary(state model.State, service model.Service) (*model.ScenarioSummary, error) {
	path, err := l.cat.SummaryPath(state, service)
	if err != nil {
		return nil, err
	}
	t, err := readSummaryTable(path)
	if err != nil {
		return nil, err
	}

	var rates []int
	for name := range t.cols {
		if m := scenarioCol.FindStringSubmatch(name); m != nil {
			r, _ := strconv.Atoi(m[1])
			rates = append(rates, r)
		}
	}
	sort.Ints(rates)
	if len(rates) == 0 {
		return nil, dataerr.Integrityf(opSummary, path, "no scenario columns (p=NN%%)")
	}
	if _, ok := t.cols[colExisting]; !ok {
		return nil, dataerr.Integrityf(opSummary, path, "no %q column", colExisting)
	}

	s := &model.ScenarioSummary{
		Optimized: make(map[int]model.ScenarioMetrics, len(rates)),
	}
	if err := t.metadata(s, scenarioName(rates[0])); err != nil {
		return nil, dataerr.NewIntegrity(opSummary, path, err)
	}

	if s.Baseline, err = t.scenario(colExisting, false); err != nil {
		return nil, dataerr.NewIntegrity(opSummary, path, err)
	}

	for _, r := range rates {
		col := scenarioName(r)
		m, err := t.scenario(col, true)
		if err != nil {
			l.log.Warn("skipping unreadable scenario column",
				zap.String("path", path),
				zap.String("column", col),
				zap.Error(err),
			)
			continue
		}
		s.Optimized[r] = m
		if ids := t.openedSchools(col); len(ids) > 0 {
			if s.ActivatedSchools == nil {
				s.ActivatedSchools = make(map[int][]string)
			}
			s.ActivatedSchools[r] = ids
		}
	}
	if len(s.Optimized) == 0 {
		return nil, dataerr.Integrityf(opSummary, path, "no readable scenario columns")
	}
	return s, nil
}

func scenarioName(rate int) string {
	return "p=" + strconv.Itoa(rate) + "%"
}

// scenario reads the metrics of one column. The baseline column carries only
// coverage and distance rows.
func (t summaryTable) scenario(col string, optimized bool) (model.ScenarioMetrics, error) {
	var (
		m   model.ScenarioMetrics
		err error
	)
	if m.PrimaryCoverage, err = t.float(rowPrimaryCov, col); err != nil {
		return m, err
	}
	if m.SecondaryCoverage, err = t.float(rowSecondaryCov, col); err != nil {
		return m, err
	}
	if m.AvgDistanceM, err = t.float(rowAvgDist, col); err != nil {
		return m, err
	}
	if m.MaxDistanceM, err = t.float(rowMaxDist, col); err != nil {
		return m, err
	}
	if !optimized {
		return m, nil
	}
	if m.SchoolsActivated, err = t.count(rowOpened, col); err != nil {
		return m, err
	}
	m.MinDistanceM = t.optional(rowMinDist, col)
	m.NonwhitePct = t.optional(rowNonwhite, col)
	m.NonBachPct = t.optional(rowNonBach, col)
	m.ComputeSeconds = t.optional(rowTime, col)
	return m, nil
}

// openedSchools parses the list literal of activated school ids, e.g.
// "['480001000001', '480001000002']". "0.0" and empty cells mean none.
func (t summaryTable) openedSchools(col string) []string {
	v, ok := t.cell(rowOpenedIDs, col)
	if !ok || v == "" || v == "0.0" || v == "0" {
		return nil
	}
	v = strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
	var ids []string
	for _, part := range strings.Split(v, ",") {
		id := strings.Trim(strings.TrimSpace(part), `'"`)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// metadata reads the problem-size rows, which repeat in every scenario
// column.
func (t summaryTable) metadata(s *model.ScenarioSummary, col string) error {
	var err error
	if s.NumCBGs, err = t.count(rowCBGs, col); err != nil {
		return err
	}
	if s.NumSchools, err = t.count(rowSchools, col); err != nil {
		return err
	}
	if s.NumFacilities, err = t.count(rowFacilities, col); err != nil {
		return err
	}
	if s.PrimaryDistM, err = t.float(rowPrimaryDist, col); err != nil {
		return err
	}
	s.SecondaryDistM, err = t.float(rowSecondDist, col)
	return err
}

// readSummaryTable reads a table whose first column holds row labels.
func readSummaryTable(path string) (summaryTable, error) {
	t := summaryTable{cols: make(map[string]int), rows: make(map[string][]string)}

	f, err := os.Open(path)
	if err != nil {
		return t, dataerr.NewUnavailable(opSummary, path, eris.Wrap(err, "results: open"))
	}
	defer func() { _ = f.Close() }()

	r, err := tabular.NewCSVReader(f, tabular.CSVOptions{LazyQuotes: true})
	if err != nil {
		return t, dataerr.NewIntegrity(opSummary, path, err)
	}
	for i, name := range r.Header.Names {
		if i == 0 {
			continue
		}
		t.cols[name] = i
	}
	err = r.Each(func(rec tabular.Record) error {
		label := rec.Field(0)
		if label == "" {
			return nil
		}
		if _, dup := t.rows[label]; !dup {
			t.rows[label] = rec.Fields
		}
		return nil
	})
	if err != nil {
		return t, dataerr.NewIntegrity(opSummary, path, err)
	}
	if len(t.rows) == 0 {
		return t, dataerr.Integrityf(opSummary, path, "summary table has no rows")
	}
	return t, nil
}
