// Package ingestion reads and validates daily price datasets and generates the
// synthetic sample dataset.
package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/panel"
)

// Required columns, in canonical order.
const (
	ColDate   = "date"
	ColTicker = "ticker"
	ColClose  = "close"
	ColVolume = "volume"
)

var requiredColumns = []string{ColDate, ColTicker, ColClose, ColVolume}

// Accepted date layouts, tried in order. Clock and zone are discarded.
var dateLayouts = []string{
	domain.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006/01/02",
}

// ReadFile reads a dataset, choosing the format by the extension of name.
func ReadFile(name string, r io.Reader) ([]domain.PriceObservation, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ReadCSV parses a CSV dataset with a header row.
// Extra columns are ignored. Rows are returned ordered by (ticker, date).
func ReadCSV(r io.Reader) ([]domain.PriceObservation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &RowError{Line: perr.Line, Err: fmt.Errorf("%w: %v", ErrInvalidRow, perr.Err)}
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return parseRecords(records, false)
}

// ReadXLSX parses the first sheet of an Excel workbook.
// Date cells may hold text dates or Excel serial numbers.
func ReadXLSX(r io.Reader) ([]domain.PriceObservation, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyDataset
	}

	// Raw values keep date cells as serial numbers instead of display text.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return parseRecords(rows, true)
}

func parseRecords(records [][]string, serialDates bool) ([]domain.PriceObservation, error) {
	if len(records) == 0 {
		return nil, ErrMissingColumns
	}

	idx, err := columnIndex(records[0])
	if err != nil {
		return nil, err
	}

	type key struct {
		date   time.Time
		ticker string
	}
	seen := make(map[key]int)

	out := make([]domain.PriceObservation, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		if isBlank(rec) {
			continue
		}

		obs, rerr := parseRow(rec, idx, serialDates)
		if rerr != nil {
			rerr.Line = line
			return nil, rerr
		}

		k := key{obs.Date, obs.Ticker}
		if first, ok := seen[k]; ok {
			return nil, &RowError{
				Line: line,
				Err:  fmt.Errorf("%w: %s %s (first at line %d)", ErrDuplicateKey, domain.FormatDate(obs.Date), obs.Ticker, first),
			}
		}
		seen[k] = line
		out = append(out, obs)
	}

	if len(out) == 0 {
		return nil, ErrEmptyDataset
	}

	panel.SortObservations(out)
	return out, nil
}

// columnIndex maps each required column to its position in header.
// Names are matched case-insensitively; a UTF-8 BOM is ignored.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w (missing %s)", ErrMissingColumns, strings.Join(missing, ","))
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int, serialDates bool) (domain.PriceObservation, *RowError) {
	cell := func(col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := parseDate(cell(ColDate), serialDates)
	if err != nil {
		return domain.PriceObservation{}, &RowError{Column: ColDate, Err: fmt.Errorf("%w: %v", ErrInvalidRow, err)}
	}

	ticker := cell(ColTicker)
	if ticker == "" {
		return domain.PriceObservation{}, &RowError{Column: ColTicker, Err: fmt.Errorf("%w: empty ticker", ErrInvalidRow)}
	}

	closePrice, err := strconv.ParseFloat(cell(ColClose), 64)
	if err != nil || math.IsNaN(closePrice) || math.IsInf(closePrice, 0) {
		return domain.PriceObservation{}, &RowError{Column: ColClose, Err: fmt.Errorf("%w: close %q", ErrInvalidRow, cell(ColClose))}
	}

	volume, err := parseVolume(cell(ColVolume))
	if err != nil {
		return domain.PriceObservation{}, &RowError{Column: ColVolume, Err: fmt.Errorf("%w: %v", ErrInvalidRow, err)}
	}

	return domain.PriceObservation{
		Date:   date,
		Ticker: ticker,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func parseDate(s string, serial bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.NormalizeDate(t), nil
		}
	}
	if serial {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return domain.NormalizeDate(t), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseVolume accepts integers and floats with no fractional part.
// An empty cell is volume 0.
func parseVolume(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative volume %d", v)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("volume %q is not a whole number", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative volume %s", s)
	}
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("volume %s out of range", s)
	}
	return int64(f), nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
