//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/markkurossi/mpsi/retcode"
)

var (
	_ Driver = &CSVDriver{}
	_ Sink   = &CSVSink{}
)

// CSVDriver loads datasets from CSV files with a header row.
type CSVDriver struct {
	Path string
}

// Load implements Driver.Load.
func (d *CSVDriver) Load(ctx context.Context, datasetID string,
	columns []int) ([][]byte, []string, error) {

	f, err := os.Open(d.Path)
	if err != nil {
		return nil, nil, retcode.Wrap(retcode.ErrConfig, err)
	}
	defer f.Close()

	return ReadCSV(ctx, f, columns)
}

// ReadCSV reads the CSV data with a header row and returns the
// elements of the selected columns.
func ReadCSV(ctx context.Context, r io.Reader, columns []int) (
	[][]byte, []string, error) {

	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, retcode.Formatf("empty CSV data")
		}
		return nil, nil, retcode.Wrap(retcode.ErrFormat, err)
	}
	header = append([]string(nil), header...)

	columns, names, err := selection(header, columns)
	if err != nil {
		return nil, nil, err
	}

	var result [][]byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, retcode.Wrap(retcode.ErrFormat, err)
		}
		e, err := element(record, columns)
		if err != nil {
			return nil, nil, retcode.Wrap(retcode.ErrFormat, err)
		}
		result = append(result, e)
	}
	return result, names, nil
}

// CSVSink saves results into CSV files. Multi-column elements are
// split back into their columns at Separator.
type CSVSink struct {
}

// Save implements Sink.Save.
func (s *CSVSink) Save(rows [][]byte, path string, columns []string) error {
	if len(path) == 0 {
		return retcode.Configf("no output path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, rows, columns); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// WriteCSV writes the rows with the column name header.
func WriteCSV(w io.Writer, rows [][]byte, columns []string) error {
	writer := csv.NewWriter(w)
	if len(columns) > 0 {
		if err := writer.Write(columns); err != nil {
			return err
		}
	}
	n := len(columns)
	if n == 0 {
		n = 1
	}
	for _, row := range rows {
		var record []string
		if n == 1 {
			record = []string{string(row)}
		} else {
			record = strings.SplitN(string(row), Separator, n)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
