package database

import (
	"context"

	"github.com/mrlokans/readinglog/internal/apperr"
)

// Row is one result row keyed by column name. TEXT and BLOB values are
// returned as strings.
type Row map[string]any

// Execute runs a mutating statement and returns the number of affected rows.
// Faults are reported as *apperr.StoreError.
func (d *Database) Execute(ctx context.Context, statement string, params ...any) (int64, error) {
	result := d.DB.WithContext(ctx).Exec(statement, params...)
	if result.Error != nil {
		return 0, apperr.Store("execute", result.Error)
	}
	return result.RowsAffected, nil
}

// Query runs a read statement and returns all rows. Faults (including
// malformed SQL) are reported as *apperr.StoreError.
func (d *Database) Query(ctx context.Context, statement string, params ...any) ([]Row, error) {
	rows, err := d.DB.WithContext(ctx).Raw(statement, params...).Rows()
	if err != nil {
		return nil, apperr.Store("query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperr.Store("query columns", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, apperr.Store("query scan", err)
		}

		row := make(Row, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
				continue
			}
			row[column] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("query rows", err)
	}
	return result, nil
}
