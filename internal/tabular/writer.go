// Package tabular writes extracted rows as CSV and XLSX files.
package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	CSVFileName  = "receipt_results.csv"
	XLSXFileName = "receipt_results.xlsx"

	// SheetName is the single sheet of the workbook
	SheetName = "Sheet1"
)

// utf8BOM lets spreadsheet applications detect the CSV encoding
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a header row plus data rows, all of the header's width
type Table struct {
	Header []string
	Rows   [][]string
}

// Paths are the files written by Write
type Paths struct {
	CSV  string `json:"csv"`
	XLSX string `json:"xlsx"`
}

// Writer writes tables into an output directory
type Writer struct {
	dir string
}

// NewWriter creates dir if it doesn't exist
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Write writes t to both files, replacing any previous results
func (w *Writer) Write(t Table) (Paths, error) {
	paths := Paths{
		CSV:  filepath.Join(w.dir, CSVFileName),
		XLSX: filepath.Join(w.dir, XLSXFileName),
	}

	if err := writeCSV(paths.CSV, t); err != nil {
		return Paths{}, fmt.Errorf("writing CSV: %w", err)
	}
	if err := writeXLSX(paths.XLSX, t); err != nil {
		return Paths{}, fmt.Errorf("writing XLSX: %w", err)
	}
	return paths, nil
}

func writeCSV(path string, t Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err := f.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	return cw.WriteAll(t.Rows)
}

func writeXLSX(path string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("setting row %d: %w", i+1, err)
		}
	}

	return f.SaveAs(path)
}
