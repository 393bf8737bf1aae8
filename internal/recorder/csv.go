package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"AllowanceLogger/internal/model"
)

const (
	dateFormat  = "2006-01-02"
	monthFormat = "2006-01"
	totalLabel  = "Total"
)

// CSVRecorder appends change rows to per-wallet monthly CSV files:
// <Dir>/<sanitized name>/<YYYY-MM>.csv
type CSVRecorder struct {
	Dir  string
	Mode model.Mode
	mu   sync.Mutex
}

// NewCSVRecorder creates a recorder rooted at dir.
func NewCSVRecorder(dir string, mode model.Mode) *CSVRecorder {
	return &CSVRecorder{Dir: dir, Mode: mode}
}

// MonthPath returns the CSV path of the wallet's table for the month containing t.
func (r *CSVRecorder) MonthPath(name string, t time.Time) string {
	return filepath.Join(r.Dir, model.SanitizeName(name), t.Format(monthFormat)+".csv")
}

func (r *CSVRecorder) header() []string {
	return []string{"Date", r.Mode.CSVColumn()}
}

// RecordChange appends (date, diff). In reward mode only increases reach this
// point, so the value is the positive reward.
func (r *CSVRecorder) RecordChange(evt *model.ChangeEvent) error {
	path := r.MonthPath(evt.Name, evt.At)
	row := []string{evt.At.Format(dateFormat), evt.Diff.String()}
	if err := r.appendRows(path, row); err != nil {
		return fmt.Errorf("append change row: %w", err)
	}
	return nil
}

// RecordExport appends the Total row to the month's table.
func (r *CSVRecorder) RecordExport(evt *model.ExportEvent) error {
	path := evt.Path
	if path == "" {
		path = r.MonthPath(evt.Name, evt.At)
	}
	if err := r.appendRows(path, []string{totalLabel, evt.Total.String()}); err != nil {
		return fmt.Errorf("append total row: %w", err)
	}
	return nil
}

func (r *CSVRecorder) Close() error { return nil }

// appendRows writes the header first when the file is new or empty, then the rows.
func (r *CSVRecorder) appendRows(path string, rows ...[]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(r.header()); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

// MonthSummary describes an existing monthly table.
type MonthSummary struct {
	Path     string
	Rows     int             // data rows, excluding header and total
	Sum      decimal.Decimal // sum of the data rows
	HasTotal bool
}

// ErrNoTable is returned by Summarize when the month has no table yet.
var ErrNoTable = errors.New("no table for month")

// Summarize reads the wallet's table for the month containing t.
func (r *CSVRecorder) Summarize(name string, t time.Time) (*MonthSummary, error) {
	path := r.MonthPath(name, t)

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoTable)
		}
		return nil, err
	}
	defer f.Close()

	sum, rows, hasTotal, err := summarizeRows(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &MonthSummary{Path: path, Rows: rows, Sum: sum, HasTotal: hasTotal}, nil
}

func summarizeRows(rd io.Reader) (decimal.Decimal, int, bool, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = 2

	records, err := cr.ReadAll()
	if err != nil {
		return decimal.Zero, 0, false, err
	}

	sum := decimal.Zero
	rows := 0
	hasTotal := false
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if rec[0] == totalLabel {
			hasTotal = true
			continue
		}
		v, err := decimal.NewFromString(rec[1])
		if err != nil {
			return decimal.Zero, 0, false, fmt.Errorf("row %d: parsing %q: %w", i+1, rec[1], err)
		}
		sum = sum.Add(v)
		rows++
	}
	return sum, rows, hasTotal, nil
}
