// Package workbook reads and writes the xlsx files of the follow-up tool:
// MDL sources, follow-up workbooks, the reference database and the NC report.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/schema"
)

// DefaultConcurrency is the number of MDL workbooks read in parallel.
const DefaultConcurrency = 4

// ErrNoWorkbooks is returned when a source directory holds no xlsx files.
var ErrNoWorkbooks = errors.New("no MDL workbooks found")

// Store implements core.Workbooks on the local filesystem.
type Store struct {
	concurrency int
}

var _ core.Workbooks = (*Store)(nil)

// New creates a Store reading up to concurrency MDL files at once.
func New(concurrency int) *Store {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Store{concurrency: concurrency}
}

// ReadSheets returns every sheet of a workbook, first row as header.
func (s *Store) ReadSheets(ctx context.Context, path string) ([]core.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var sheets []core.Sheet
	for _, name := range f.GetSheetList() {
		sh, err := readSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		sheets = append(sheets, sh)
	}
	return sheets, nil
}

// ReadReference reads the reference database sheet, or the first sheet of
// workbooks that predate the sheet name.
func (s *Store) ReadReference(ctx context.Context, path string, console core.Console) (core.ReferenceDB, error) {
	sheets, err := s.ReadSheets(ctx, path)
	if err != nil {
		return core.ReferenceDB{}, err
	}
	if len(sheets) == 0 {
		return core.ReferenceDB{}, fmt.Errorf("%s: workbook has no sheets", filepath.Base(path))
	}
	sh := sheets[0]
	if i := slices.IndexFunc(sheets, func(s core.Sheet) bool { return s.Name == schema.SheetReference }); i >= 0 {
		sh = sheets[i]
	}
	return core.ParseReferenceDB(filepath.Base(path), sh.Header, sh.Rows, console)
}

// WriteReference saves the reference database in its fixed schema.
func (s *Store) WriteReference(ctx context.Context, path string, db core.ReferenceDB) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeSheets(path, []core.Sheet{{
		Name:   schema.SheetReference,
		Header: slices.Clone(schema.ReferenceColumns),
		Rows:   db.Rows(),
	}})
}

func readSheet(f *excelize.File, name string) (core.Sheet, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return core.Sheet{}, fmt.Errorf("read sheet %q: %w", name, err)
	}
	sh := core.Sheet{Name: name}
	if len(rows) == 0 {
		return sh, nil
	}
	sh.Header = make([]string, len(rows[0]))
	for i, h := range rows[0] {
		sh.Header[i] = strings.TrimSpace(h)
	}
	sh.Rows = rows[1:]
	return sh, nil
}

// writeSheets saves the sheets, in order, as a new workbook at path.
func writeSheets(path string, sheets []core.Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("write %s: no sheets", filepath.Base(path))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				return fmt.Errorf("name sheet %q: %w", sh.Name, err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("add sheet %q: %w", sh.Name, err)
		}
		if err := streamSheet(f, sh); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func streamSheet(f *excelize.File, sh core.Sheet) error {
	sw, err := f.NewStreamWriter(sh.Name)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", sh.Name, err)
	}
	write := func(row int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		cells := make([]interface{}, len(values))
		for i, v := range values {
			if v != "" {
				cells[i] = v
			}
		}
		return sw.SetRow(cell, cells)
	}

	if err := write(1, sh.Header); err != nil {
		return fmt.Errorf("sheet %q header: %w", sh.Name, err)
	}
	for i, row := range sh.Rows {
		if err := write(i+2, row); err != nil {
			return fmt.Errorf("sheet %q row %d: %w", sh.Name, i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("sheet %q: %w", sh.Name, err)
	}
	return nil
}
