/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/scalar"
)

// Row is one stored record keyed by column name. A missing column and a nil
// value both mean "no value".
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Key identifies a row by its primary key columns.
type Key struct {
	Columns []string
	Values  []any
}

// String renders the key as escaped column=value pairs in column order.
func (k Key) String() string {
	var b strings.Builder
	for i, c := range k.Columns {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(c))
		b.WriteByte('=')
		if i < len(k.Values) {
			b.WriteString(url.QueryEscape(scalar.MustFormat(k.Values[i])))
		}
	}
	return b.String()
}

// Rows is the row access shared by a backend and its transactions. Rows
// passed in and handed out are copies.
type Rows interface {
	// Get returns the row with key, or a NotFoundError.
	Get(ctx context.Context, t *Table, key Key) (Row, error)

	// Scan returns every row of the table in insertion order.
	Scan(ctx context.Context, t *Table) ([]Row, error)

	// Insert adds a row, failing with AlreadyExistsError on a duplicate key.
	Insert(ctx context.Context, t *Table, row Row) error

	// Update overwrites the given columns of an existing row.
	Update(ctx context.Context, t *Table, key Key, values Row) error

	// Delete removes a row, failing with NotFoundError when it is absent.
	Delete(ctx context.Context, t *Table, key Key) error

	// NextSequence returns the next value of the column's sequence, starting at 1.
	NextSequence(ctx context.Context, t *Table, column string) (int64, error)
}

// Backend is the storage contract the persistence engine drives.
type Backend interface {
	Rows

	Name() string

	// Supports reports whether columns of kind k can be stored.
	Supports(k scalar.Kind) bool

	TableExists(ctx context.Context, table string) (bool, error)
	DropTable(ctx context.Context, table string) error
	CreateTable(ctx context.Context, t *Table) error
	CreateIndexes(ctx context.Context, t *Table) error
	CreateForeignKeys(ctx context.Context, t *Table) error

	// Begin starts a transaction. Writes made through it become visible to
	// the backend on Commit and are discarded on Rollback.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a backend transaction.
type Tx interface {
	Rows
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CheckRow enforces the column constraints of t on row: not-null columns and
// bounded string lengths.
func CheckRow(t *Table, row Row) error {
	for _, c := range t.Columns {
		v := row[c.Name]
		if v == nil {
			if c.NotNull {
				return errors.NewConstraintError(t.Name, c.Name, "value required")
			}
			continue
		}
		if c.MaxLength > 0 {
			if s, ok := v.(string); ok && utf8.RuneCountInString(s) > c.MaxLength {
				return errors.NewConstraintError(t.Name, c.Name, "value too long")
			}
		}
	}
	return nil
}
