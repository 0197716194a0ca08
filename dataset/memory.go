//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package dataset

import (
	"context"
	"sync"

	"github.com/markkurossi/mpsi/retcode"
)

var (
	_ Driver = &Memory{}
	_ Sink   = &Memory{}
)

// Table implements an in-memory table.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Memory implements in-memory datasets and result storage.
type Memory struct {
	m       sync.Mutex
	tables  map[string]*Table
	results map[string]*Result
}

// Result holds rows saved into the memory sink.
type Result struct {
	Columns []string
	Rows    [][]byte
}

// NewMemory creates a new in-memory dataset store.
func NewMemory() *Memory {
	return &Memory{
		tables:  make(map[string]*Table),
		results: make(map[string]*Result),
	}
}

// Add adds the table for the dataset ID.
func (mem *Memory) Add(datasetID string, table *Table) {
	mem.m.Lock()
	defer mem.m.Unlock()
	mem.tables[datasetID] = table
}

// Load implements Driver.Load.
func (mem *Memory) Load(ctx context.Context, datasetID string,
	columns []int) ([][]byte, []string, error) {

	mem.m.Lock()
	table, ok := mem.tables[datasetID]
	mem.m.Unlock()
	if !ok {
		return nil, nil, retcode.Configf("unknown dataset %s", datasetID)
	}
	columns, names, err := selection(table.Columns, columns)
	if err != nil {
		return nil, nil, err
	}
	result := make([][]byte, 0, len(table.Rows))
	for _, row := range table.Rows {
		e, err := element(row, columns)
		if err != nil {
			return nil, nil, retcode.Wrap(retcode.ErrFormat, err)
		}
		result = append(result, e)
	}
	return result, names, nil
}

// Save implements Sink.Save.
func (mem *Memory) Save(rows [][]byte, path string, columns []string) error {
	if len(path) == 0 {
		return retcode.Configf("no output path")
	}
	mem.m.Lock()
	defer mem.m.Unlock()

	r := &Result{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]byte, len(rows)),
	}
	for i, row := range rows {
		r.Rows[i] = append([]byte(nil), row...)
	}
	mem.results[path] = r
	return nil
}

// Result returns the result saved to the path.
func (mem *Memory) Result(path string) (*Result, bool) {
	mem.m.Lock()
	defer mem.m.Unlock()
	r, ok := mem.results[path]
	return r, ok
}
