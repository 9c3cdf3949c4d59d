package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	// DefaultWorkbookPath is the dashboard file used when none is configured.
	DefaultWorkbookPath = "Weather_dashboard.xlsx"

	defaultSheet = "Sheet1"
	columnWidth  = 20
	firstCol     = "A"
	lastCol      = "H"
)

var (
	// ErrNotFound is returned when the workbook has no sheet for a location.
	ErrNotFound = errors.New("no sheet for location")
)

// WorkbookStore keeps one sheet per location in a single .xlsx file.
// It assumes it is the only writer of the file.
type WorkbookStore struct {
	path   string
	logger *slog.Logger
}

// NewWorkbookStore creates a store backed by the workbook at path.
func NewWorkbookStore(path string, logger *slog.Logger) *WorkbookStore {
	if path == "" {
		path = DefaultWorkbookPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookStore{path: path, logger: logger}
}

// Path returns the workbook location on disk.
func (s *WorkbookStore) Path() string {
	return s.path
}

// SheetKey normalises a location name into its sheet name: the first letter
// is upper-cased and the rest is kept as is.
func SheetKey(location string) string {
	location = strings.TrimSpace(location)
	r, size := utf8.DecodeRuneInString(location)
	if r == utf8.RuneError {
		return location
	}
	return string(unicode.ToUpper(r)) + location[size:]
}

// Upsert replaces the data region of the location's sheet with rows,
// creating the workbook and the sheet as needed, then saves the workbook.
func (s *WorkbookStore) Upsert(location string, rows []weather.ObservationRow) (weather.UpsertResult, error) {
	key := SheetKey(location)
	if key == "" {
		return weather.UpsertResult{}, fmt.Errorf("%w: empty location name", weather.ErrStoreIO)
	}

	f, created, err := s.openOrCreate()
	if err != nil {
		return weather.UpsertResult{}, err
	}
	defer f.Close()

	sheet, exists := findSheet(f, key)
	if exists {
		if sheet != key {
			s.logger.Warn("location collides with an existing sheet of different case; reusing it",
				"location", key, "sheet", sheet)
		}
		if err := clearSheet(f, sheet); err != nil {
			return weather.UpsertResult{}, s.ioErr("clear sheet "+sheet, err)
		}
	} else {
		sheet = key
		if _, err := f.NewSheet(sheet); err != nil {
			return weather.UpsertResult{}, s.ioErr("create sheet "+sheet, err)
		}
	}

	if created {
		if _, isDefault := findSheet(f, defaultSheet); isDefault && !strings.EqualFold(sheet, defaultSheet) {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return weather.UpsertResult{}, s.ioErr("remove default sheet", err)
			}
		}
		f.SetActiveSheet(0)
	}

	if err := writeHeader(f, sheet); err != nil {
		return weather.UpsertResult{}, s.ioErr("write header to "+sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return weather.UpsertResult{}, s.ioErr("append rows to "+sheet, err)
		}
		values := row.Values()
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return weather.UpsertResult{}, s.ioErr("append rows to "+sheet, err)
		}
	}

	if err := s.save(f); err != nil {
		return weather.UpsertResult{}, err
	}

	s.logger.Debug("workbook saved", "path", s.path, "sheet", sheet, "created", created, "rows", len(rows))
	return weather.UpsertResult{Created: created, SheetName: sheet, Rows: len(rows)}, nil
}

// SheetNames lists the location sheets in workbook order.
func (s *WorkbookStore) SheetNames() ([]string, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// Rows reads back the data rows of a location sheet with numeric columns
// parsed as numbers.
func (s *WorkbookStore) Rows(location string) ([]weather.ObservationRow, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet, ok := findSheet(f, SheetKey(location))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, SheetKey(location))
	}

	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, s.ioErr("read sheet "+sheet, err)
	}

	out := make([]weather.ObservationRow, 0, len(grid))
	for i, cells := range grid {
		if i == 0 {
			continue
		}
		row, err := parseRow(cells)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", weather.ErrStoreIO, sheet, i+1, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *WorkbookStore) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: the file %s was not found: %w", weather.ErrStoreIO, s.path, err)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: permission denied when accessing %s: %w", weather.ErrStoreIO, s.path, err)
		default:
			return nil, fmt.Errorf("%w: the file %s is not a valid workbook: %w", weather.ErrStoreIO, s.path, err)
		}
	}
	return f, nil
}

func (s *WorkbookStore) openOrCreate() (*excelize.File, bool, error) {
	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		f, err := s.open()
		return f, false, err
	case errors.Is(err, fs.ErrNotExist):
		return excelize.NewFile(), true, nil
	default:
		return nil, false, s.ioErr("stat", err)
	}
}

// save writes the workbook next to its target and renames it into place,
// leaving the previous file intact when any step fails.
func (s *WorkbookStore) save(f *excelize.File) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return s.ioErr("save", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := f.Write(tmp); err != nil {
		return s.ioErr("save", err)
	}
	if err := tmp.Sync(); err != nil {
		return s.ioErr("save", err)
	}
	if err := tmp.Close(); err != nil {
		return s.ioErr("save", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return s.ioErr("save", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return s.ioErr("save", err)
	}
	committed = true
	return nil
}

func (s *WorkbookStore) ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", weather.ErrStoreIO, op, s.path, err)
}

// findSheet matches case-insensitively, as spreadsheet applications do.
func findSheet(f *excelize.File, name string) (string, bool) {
	for _, sheet := range f.GetSheetList() {
		if strings.EqualFold(sheet, name) {
			return sheet, true
		}
	}
	return "", false
}

func clearSheet(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return err
	}
	for r := len(rows); r >= 1; r-- {
		if err := f.RemoveRow(sheet, r); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string) error {
	if err := f.SetColWidth(sheet, firstCol, lastCol, columnWidth); err != nil {
		return err
	}

	header := make([]interface{}, len(weather.Header))
	for i, title := range weather.Header {
		header[i] = title
	}
	if err := f.SetSheetRow(sheet, firstCol+"1", &header); err != nil {
		return err
	}

	style, err := f.NewStyle(headerStyle())
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, firstCol+"1", lastCol+"1", style)
}

func headerStyle() *excelize.Style {
	border := func(side string) excelize.Border {
		return excelize.Border{Type: side, Color: "000000", Style: 1}
	}
	return &excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DCE6F1"}},
		Border: []excelize.Border{
			border("left"), border("top"), border("right"), border("bottom"),
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}
}

func parseRow(cells []string) (weather.ObservationRow, error) {
	if len(cells) < len(weather.Header) {
		return weather.ObservationRow{}, fmt.Errorf("expected %d cells, got %d", len(weather.Header), len(cells))
	}

	var nums [4]float64
	for i, col := range []int{1, 2, 5, 7} {
		v, err := strconv.ParseFloat(cells[col], 64)
		if err != nil {
			return weather.ObservationRow{}, fmt.Errorf("column %s: %w", weather.Header[col], err)
		}
		nums[i] = v
	}

	return weather.ObservationRow{
		Fetched:               cells[0],
		Latitude:              nums[0],
		Longitude:             nums[1],
		Date:                  cells[3],
		Hour:                  cells[4],
		Temperature:           nums[2],
		PrecipitationCategory: cells[6],
		PrecipitationMM:       nums[3],
	}, nil
}
