//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/markkurossi/mpsi/retcode"
)

var (
	_ Driver = &SQL{}
)

// SQL loads datasets from a database table. The driver must be
// registered with database/sql by the caller, for example with the
// github.com/lib/pq import for the postgres driver.
type SQL struct {
	DB    *sql.DB
	Table string
}

// OpenSQL opens the database and creates a driver for its table.
func OpenSQL(driverName, dsn, table string) (*SQL, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &SQL{
		DB:    db,
		Table: table,
	}, nil
}

// Close closes the database.
func (d *SQL) Close() error {
	return d.DB.Close()
}

// Load implements Driver.Load.
func (d *SQL) Load(ctx context.Context, datasetID string, columns []int) (
	[][]byte, []string, error) {

	if err := d.DB.PingContext(ctx); err != nil {
		return nil, nil, retcode.Wrap(retcode.ErrConfig,
			fmt.Errorf("dataset %s: %w", datasetID, err))
	}
	header, err := d.schema(ctx)
	if err != nil {
		return nil, nil, err
	}
	_, names, err := selection(header, columns)
	if err != nil {
		return nil, nil, err
	}

	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoted, ", "), quoteIdent(d.Table))

	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset %s: %w", datasetID, err)
	}
	defer rows.Close()

	values := make([]sql.NullString, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(names))
	all := make([]int, len(names))
	for i := range all {
		all[i] = i
	}

	var result [][]byte
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, retcode.Wrap(retcode.ErrFormat, err)
		}
		for i, v := range values {
			record[i] = v.String
		}
		e, err := element(record, all)
		if err != nil {
			return nil, nil, retcode.Wrap(retcode.ErrFormat, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("dataset %s: %w", datasetID, err)
	}
	return result, names, nil
}

// schema returns the table column names.
func (d *SQL) schema(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdent(d.Table)))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", d.Table, err)
	}
	defer rows.Close()
	return rows.Columns()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
