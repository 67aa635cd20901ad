package rowstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local development.
// It mirrors the spreadsheet's semantics: string cells, whole-row saves,
// last-write-wins.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]*memoryRow
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]*memoryRow)}
}

type memoryRow struct {
	store  *MemoryStore
	table  string
	index  int
	values map[string]string
}

func (r *memoryRow) Get(field string) string { return r.values[field] }

func (r *memoryRow) Set(field, value string) { r.values[field] = value }

func (r *memoryRow) Save(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	persisted := r.store.tables[r.table][r.index]
	persisted.values = copyValues(r.values)
	return nil
}

// Rows returns detached copies; edits are only visible after Save.
func (s *MemoryStore) Rows(ctx context.Context, table string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]Row, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		rows = append(rows, &memoryRow{
			store:  s,
			table:  table,
			index:  row.index,
			values: copyValues(row.values),
		})
	}
	return rows, nil
}

func (s *MemoryStore) FindRow(ctx context.Context, table string, match func(Row) bool) (Row, error) {
	rows, err := s.Rows(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if match(row) {
			return row, nil
		}
	}
	return nil, ErrRowNotFound
}

func (s *MemoryStore) AddRow(ctx context.Context, table string, object map[string]string) error {
	return s.AppendRows(ctx, table, []map[string]string{object})
}

func (s *MemoryStore) AppendRows(ctx context.Context, table string, objects []map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, object := range objects {
		s.tables[table] = append(s.tables[table], &memoryRow{
			store:  s,
			table:  table,
			index:  len(s.tables[table]),
			values: copyValues(object),
		})
	}
	return nil
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
