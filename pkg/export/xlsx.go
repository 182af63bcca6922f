package export

import (
	"context"
	"fmt"
	"io"

	"github.com/Sternrassler/regnum-scraper/pkg/records"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the name of the single worksheet.
const DefaultSheet = "Sheet1"

// XLSXSink writes a single-sheet workbook with a header row. Numeric values
// are stored as numbers, nulls as empty cells.
type XLSXSink struct {
	Path  string
	Sheet string
}

// NewXLSXSink returns an XLSX sink for path, or the default path when empty.
func NewXLSXSink(path, sheet string) *XLSXSink {
	if path == "" {
		path = DefaultXLSXPath
	}
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &XLSXSink{Path: path, Sheet: sheet}
}

func (s *XLSXSink) Name() string   { return "xlsx" }
func (s *XLSXSink) Target() string { return s.Path }

// Write builds the workbook in memory and replaces the file atomically.
func (s *XLSXSink) Write(ctx context.Context, recs []records.FlatRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if s.Sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, s.Sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	header := make([]any, len(records.Columns))
	for i, c := range records.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(s.Sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]any, len(records.Columns))
	for i, rec := range recs {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j := range row {
			row[j] = nil
			if j < len(rec) {
				row[j] = records.NumericValue(rec[j])
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(s.Sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	return replaceFile(s.Path, func(w io.Writer) error {
		if err := f.Write(w); err != nil {
			return fmt.Errorf("save workbook: %w", err)
		}
		return nil
	})
}
