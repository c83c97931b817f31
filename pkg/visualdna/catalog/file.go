package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Catalog file formats, named by extension.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// FormatOf returns the catalog format implied by a file name.
func FormatOf(name string) (string, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")); ext {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported catalog format %q (want .csv or .xlsx)", ext)
	}
}

// ReadFile loads a .csv or .xlsx catalog. sheet only applies to workbooks.
func ReadFile(path, sheet string) (*Result, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return ReadXLSX(path, sheet)
	}
	return ReadCSVFile(path)
}

// Read loads a catalog stream whose format is implied by name.
func Read(r io.Reader, name, sheet string) (*Result, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return ReadXLSXFrom(r, name, sheet)
	}
	return ReadCSV(r, name)
}

// Write saves records in the given format.
func Write(w io.Writer, format string, records []Record) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	default:
		return fmt.Errorf("unsupported catalog format %q", format)
	}
}

// WriteFile saves records to path in the format its extension names.
func WriteFile(path string, records []Record) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return WriteXLSXFile(path, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
