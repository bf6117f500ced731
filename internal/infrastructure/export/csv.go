package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/korean"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
)

// CSVWriter writes a dataset as one header line plus one line per row.
type CSVWriter struct {
	path   string
	eucKR  bool
	stdout io.Writer
}

var _ ports.DatasetWriter = (*CSVWriter)(nil)

// NewCSVWriter targets path; "-" writes to stdout. "{day}" in path is replaced by the run day.
// encoding may be "utf-8" (default) or "euc-kr".
func NewCSVWriter(path, encoding string) (*CSVWriter, error) {
	w := &CSVWriter{path: path, stdout: os.Stdout}
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
	case "euc-kr", "euckr", "cp949":
		w.eucKR = true
	default:
		return nil, fmt.Errorf("unsupported output encoding %q", encoding)
	}
	return w, nil
}

// Write emits dataset.
func (w *CSVWriter) Write(ctx context.Context, dataset domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.path == "" || w.path == "-" {
		return w.encode(w.stdout, dataset)
	}

	path := strings.ReplaceAll(w.path, "{day}", dataset.Day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := w.encode(tmp, dataset); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

func (w *CSVWriter) encode(out io.Writer, dataset domain.Dataset) error {
	if w.eucKR {
		enc := korean.EUCKR.NewEncoder().Writer(out)
		if err := w.writeRecords(enc, dataset); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode euc-kr: %w", err)
		}
		return nil
	}
	return w.writeRecords(out, dataset)
}

func (w *CSVWriter) writeRecords(out io.Writer, dataset domain.Dataset) error {
	cw := csv.NewWriter(out)

	columns := domain.CollectionResult{}.Record()
	header := make([]string, len(columns))
	for j, f := range columns {
		header[j] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range dataset.Rows {
		record := row.Record()
		values := make([]string, len(record))
		for j, f := range record {
			values[j] = f.Value
		}
		if err := cw.Write(values); err != nil {
			return fmt.Errorf("write row %s: %w", row.Security.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
