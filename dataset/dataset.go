//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package dataset implements the party dataset drivers and the
// result sinks.
package dataset

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/markkurossi/mpsi/retcode"
)

// Separator joins the selected column values of a row into one
// element.
const Separator = "_"

// Driver loads dataset elements. The columns specify the selected
// column indices; an empty selection selects all columns. The
// function returns the elements in dataset order and the selected
// column names.
type Driver interface {
	Load(ctx context.Context, datasetID string, columns []int) (
		[][]byte, []string, error)
}

// Sink saves result rows with the column name header.
type Sink interface {
	Save(rows [][]byte, path string, columns []string) error
}

// Spec describes how to open a dataset.
type Spec struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
	Table  string `yaml:"table,omitempty"`
}

// Service maps dataset IDs to their drivers.
type Service struct {
	m       sync.Mutex
	drivers map[string]Driver
}

// NewService creates a new dataset service.
func NewService() *Service {
	return &Service{
		drivers: make(map[string]Driver),
	}
}

// Register registers the driver for the dataset ID.
func (s *Service) Register(datasetID string, driver Driver) {
	s.m.Lock()
	defer s.m.Unlock()
	s.drivers[datasetID] = driver
}

// Open creates the driver for the dataset spec and registers it for
// the dataset ID.
func (s *Service) Open(datasetID string, spec Spec) error {
	var driver Driver
	switch spec.Driver {
	case "csv":
		if len(spec.Path) == 0 {
			return retcode.Configf("dataset %s: no CSV path", datasetID)
		}
		driver = &CSVDriver{
			Path: spec.Path,
		}

	case "postgres":
		if len(spec.DSN) == 0 || len(spec.Table) == 0 {
			return retcode.Configf("dataset %s: DSN and table required",
				datasetID)
		}
		sql, err := OpenSQL(spec.Driver, spec.DSN, spec.Table)
		if err != nil {
			return retcode.Wrap(retcode.ErrConfig, err)
		}
		driver = sql

	default:
		return retcode.Configf("dataset %s: unsupported driver '%s'",
			datasetID, spec.Driver)
	}
	s.Register(datasetID, driver)
	return nil
}

// Driver returns the driver of the dataset ID.
func (s *Service) Driver(datasetID string) (Driver, error) {
	s.m.Lock()
	defer s.m.Unlock()
	driver, ok := s.drivers[datasetID]
	if !ok {
		return nil, retcode.Configf("no driver for dataset %s", datasetID)
	}
	return driver, nil
}

// Load loads the dataset with its registered driver.
func (s *Service) Load(ctx context.Context, datasetID string, columns []int) (
	[][]byte, []string, error) {

	driver, err := s.Driver(datasetID)
	if err != nil {
		return nil, nil, err
	}
	return driver.Load(ctx, datasetID, columns)
}

// selection resolves the column selection against the dataset
// header.
func selection(header []string, columns []int) ([]int, []string, error) {
	if len(columns) == 0 {
		columns = make([]int, len(header))
		for i := range columns {
			columns[i] = i
		}
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		if col < 0 || col >= len(header) {
			return nil, nil, retcode.Configf(
				"column index %d out of range [0,%d)", col, len(header))
		}
		names[i] = header[col]
	}
	return columns, names, nil
}

// element builds the element of a row from the selected columns.
func element(row []string, columns []int) ([]byte, error) {
	var sb strings.Builder
	for i, col := range columns {
		if col >= len(row) {
			return nil, fmt.Errorf("row has %d columns, column %d selected",
				len(row), col)
		}
		if i > 0 {
			sb.WriteString(Separator)
		}
		sb.WriteString(row[col])
	}
	return []byte(sb.String()), nil
}
