// Package export writes return-period analysis results as CSV files and as an
// Excel workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

// File and sheet names.
const (
	RankedPeaksName = "ranked_peaks"
	CombinedName    = "combined_rp"
	ThresholdsName  = "thresholds"
	ExceedanceName  = "exceedance"
	GumbelName      = "gumbel"
)

// GumbelRow is one parametric return-period estimate for a unit.
type GumbelRow struct {
	Unit         string
	ReturnPeriod float64
	Value        float64
}

// Report bundles the tables of one analysis run. Nil or empty tables are
// skipped. Exceedances are written only alongside Thresholds.
type Report struct {
	Ranked      []domain.RankedPeak
	Combined    []domain.CombinedRP
	Thresholds  *domain.ThresholdTable
	Exceedances []domain.AnnualPeak
	Gumbel      []GumbelRow
}

type table struct {
	name   string
	header []string
	rows   [][]string
}

func (r Report) tables() []table {
	var out []table
	if len(r.Ranked) > 0 {
		out = append(out, rankedTable(r.Ranked))
	}
	if len(r.Combined) > 0 {
		out = append(out, combinedTable(r.Combined))
	}
	if r.Thresholds != nil {
		out = append(out, thresholdTable(*r.Thresholds))
		if len(r.Exceedances) > 0 {
			out = append(out, exceedanceTable(r.Exceedances, *r.Thresholds))
		}
	}
	if len(r.Gumbel) > 0 {
		out = append(out, gumbelTable(r.Gumbel))
	}
	return out
}

func rankedTable(rows []domain.RankedPeak) table {
	t := table{
		name:   RankedPeaksName,
		header: []string{"unit", "year", "value", "peak_time", "rank", "rp"},
		rows:   make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			r.Unit,
			strconv.Itoa(r.Year),
			formatFloat(r.Value),
			r.PeakTime.UTC().Format("2006-01-02T15:04:05Z"),
			formatFloat(r.Rank),
			formatRP(r.ReturnPeriod),
		})
	}
	return t
}

func combinedTable(rows []domain.CombinedRP) table {
	t := table{
		name:   CombinedName,
		header: []string{"rp_ind", "rp_combined", "qualifying_years"},
		rows:   make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			formatRP(r.IndividualRP),
			formatRP(r.CombinedRP),
			strconv.Itoa(r.QualifyingYears),
		})
	}
	return t
}

func thresholdTable(th domain.ThresholdTable) table {
	t := table{
		name:   ThresholdsName,
		header: []string{"unit", "target_combined_rp", "rp_ind", "threshold"},
		rows:   make([][]string, 0, len(th.Thresholds)),
	}
	for _, u := range th.Thresholds {
		t.rows = append(t.rows, []string{
			u.Unit,
			formatRP(th.TargetCombinedRP),
			formatRP(th.IndividualRP),
			formatFloat(u.Value),
		})
	}
	return t
}

func exceedanceTable(peaks []domain.AnnualPeak, th domain.ThresholdTable) table {
	t := table{
		name:   ExceedanceName,
		header: []string{"unit", "year", "value", "peak_time", "rp_ind", "threshold"},
		rows:   make([][]string, 0, len(peaks)),
	}
	for _, p := range peaks {
		threshold := ""
		if v, err := domain.ThresholdFor(th.Thresholds, p.Unit, th.IndividualRP); err == nil {
			threshold = formatFloat(v)
		}
		t.rows = append(t.rows, []string{
			p.Unit,
			strconv.Itoa(p.Year),
			formatFloat(p.Value),
			p.PeakTime.UTC().Format("2006-01-02T15:04:05Z"),
			formatRP(th.IndividualRP),
			threshold,
		})
	}
	return t
}

func gumbelTable(rows []GumbelRow) table {
	t := table{
		name:   GumbelName,
		header: []string{"unit", "rp", "value"},
		rows:   make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.rows = append(t.rows, []string{r.Unit, formatRP(r.ReturnPeriod), formatFloat(r.Value)})
	}
	return t
}

func formatRP(v float64) string {
	return formatFloat(domain.RoundRP(v))
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(w io.Writer, t table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return fmt.Errorf("write %s header: %w", t.name, err)
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return fmt.Errorf("write %s rows: %w", t.name, err)
	}
	return nil
}

// WriteRankedPeaksCSV writes ranked annual peaks as CSV.
func WriteRankedPeaksCSV(w io.Writer, rows []domain.RankedPeak) error {
	return writeCSV(w, rankedTable(rows))
}

// WriteCombinedCSV writes the combined return-period table as CSV. An
// infinite combined return period is written as "inf".
func WriteCombinedCSV(w io.Writer, rows []domain.CombinedRP) error {
	return writeCSV(w, combinedTable(rows))
}

// WriteThresholdsCSV writes one row per unit of th as CSV.
func WriteThresholdsCSV(w io.Writer, th domain.ThresholdTable) error {
	return writeCSV(w, thresholdTable(th))
}

// WriteExceedanceCSV writes the peaks that reach their unit's threshold in th.
func WriteExceedanceCSV(w io.Writer, peaks []domain.AnnualPeak, th domain.ThresholdTable) error {
	return writeCSV(w, exceedanceTable(peaks, th))
}

// WriteCSVDir writes each non-empty table of r to dir/<name>.csv and returns
// the paths written.
func WriteCSVDir(dir string, r Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var paths []string
	for _, t := range r.tables() {
		path := filepath.Join(dir, t.name+".csv")
		if err := writeFile(path, t); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, t table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return writeCSV(f, t)
}

// WriteWorkbook writes every non-empty table of r to its own sheet of an xlsx
// workbook.
func WriteWorkbook(w io.Writer, r Report) error {
	tables := r.tables()
	if len(tables) == 0 {
		return fmt.Errorf("write workbook: %w", domain.ErrEmptyInput)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	defaultSheet := f.GetSheetName(0)
	for i, t := range tables {
		idx, err := f.NewSheet(t.name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", t.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := setRow(f, t.name, 1, t.header); err != nil {
			return err
		}
		for j, row := range t.rows {
			if err := setRow(f, t.name, j+2, row); err != nil {
				return err
			}
		}
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// setRow stores finite numeric values as numbers and everything else as text.
func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			cells[i] = n
			continue
		}
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
