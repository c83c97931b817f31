package catalog

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet WriteXLSX writes to.
const DefaultSheet = "Sheet1"

// ReadXLSX loads a catalog from a workbook. An empty sheet name selects the
// first sheet.
func ReadXLSX(path, sheet string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, filepath.Base(path), sheet)
}

// ReadXLSXFrom is ReadXLSX over an uploaded stream.
func ReadXLSXFrom(r io.Reader, source, sheet string) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, source, sheet)
}

func readWorkbook(f *excelize.File, source, sheet string) (*Result, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", source)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return fromRows(source, rows)
}

// WriteXLSX writes records to a new single-sheet workbook.
func WriteXLSX(w io.Writer, records []Record) error {
	f, err := newWorkbook(records)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// WriteXLSXFile writes records to path.
func WriteXLSXFile(path string, records []Record) error {
	f, err := newWorkbook(records)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func newWorkbook(records []Record) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := writeRow(f, 1, header); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range records {
		if err := writeRow(f, i+2, recordRow(r)); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cellName, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(DefaultSheet, cellName, &vals)
}
