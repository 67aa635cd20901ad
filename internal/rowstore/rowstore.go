// Package rowstore abstracts the external spreadsheet used as the system's
// only durable store: a flat table of string-valued named columns per row.
// No joins, no transactions, no schema beyond column presence. Concurrent
// saves of the same row are last-write-wins.
package rowstore

import (
	"context"

	"github.com/pkg/errors"
)

// Sheet tab names, one per table.
const (
	TableInvoices  = "Fatture"
	TableMovements = "Movimenti"
	TableProducts  = "Prodotti"
	TableStores    = "PuntiVendita"
	TableOperators = "Utenti"
)

// ErrRowNotFound is returned by FindRow when no row matches.
var ErrRowNotFound = errors.New("rowstore: row not found")

// Row is one spreadsheet row. Set mutates the in-memory copy only; Save
// persists the whole row.
type Row interface {
	Get(field string) string
	Set(field, value string)
	Save(ctx context.Context) error
}

// Store is the row-level contract the services depend on.
type Store interface {
	// FindRow returns the first row of table for which match is true, or
	// ErrRowNotFound.
	FindRow(ctx context.Context, table string, match func(Row) bool) (Row, error)

	// Rows returns every data row of table.
	Rows(ctx context.Context, table string) ([]Row, error)

	// AddRow appends one row built from the column map.
	AddRow(ctx context.Context, table string, object map[string]string) error

	// AppendRows appends a batch of rows in order.
	AppendRows(ctx context.Context, table string, objects []map[string]string) error
}
