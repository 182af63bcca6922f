package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Sternrassler/regnum-scraper/pkg/records"
)

// CSVSink writes a comma-separated UTF-8 file with a header row.
type CSVSink struct {
	Path string
}

// NewCSVSink returns a CSV sink for path, or the default path when empty.
func NewCSVSink(path string) *CSVSink {
	if path == "" {
		path = DefaultCSVPath
	}
	return &CSVSink{Path: path}
}

func (s *CSVSink) Name() string   { return "csv" }
func (s *CSVSink) Target() string { return s.Path }

// Write replaces the file atomically.
func (s *CSVSink) Write(ctx context.Context, recs []records.FlatRecord) error {
	return replaceFile(s.Path, func(w io.Writer) error {
		return writeCSV(ctx, w, recs)
	})
}

func writeCSV(ctx context.Context, f io.Writer, recs []records.FlatRecord) error {
	w := csv.NewWriter(f)
	if err := w.Write(records.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range recs {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := w.Write(rec.Strings()); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
