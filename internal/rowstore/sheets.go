package rowstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig holds the Google Sheets connection settings.
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"sheets.spreadsheet_id"`
	CredentialsFile string `mapstructure:"sheets.credentials_file"`
}

// SheetsStore implements Store on top of a single Google spreadsheet with
// one tab per table. The first row of each tab is the header.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsStore creates the store and verifies the spreadsheet is reachable.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Sheets service")
	}

	if _, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return nil, errors.Wrap(err, "failed to open spreadsheet")
	}

	return &SheetsStore{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// sheetRow is one materialized row plus enough position info to write it
// back. Save rewrites the full row range.
type sheetRow struct {
	store    *SheetsStore
	table    string
	header   []string
	values   map[string]string
	rowIndex int // 1-based sheet row, header is row 1
}

func (r *sheetRow) Get(field string) string {
	return r.values[field]
}

func (r *sheetRow) Set(field, value string) {
	r.values[field] = value
}

func (r *sheetRow) Save(ctx context.Context) error {
	cells := make([]interface{}, len(r.header))
	for i, col := range r.header {
		cells[i] = r.values[col]
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", r.table, r.rowIndex, columnLetter(len(r.header)), r.rowIndex)
	_, err := r.store.svc.Spreadsheets.Values.
		Update(r.store.spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{cells}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return errors.Wrapf(err, "failed to save row %d of %s", r.rowIndex, r.table)
	}
	return nil
}

// Rows fetches the whole tab and materializes its data rows.
func (s *SheetsStore) Rows(ctx context.Context, table string) ([]Row, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, table).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read table %s", table)
	}
	if len(resp.Values) == 0 {
		return nil, errors.Errorf("table %s has no header row", table)
	}

	header := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(cell))
	}

	rows := make([]Row, 0, len(resp.Values)-1)
	for i, raw := range resp.Values[1:] {
		values := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(raw) {
				values[col] = fmt.Sprint(raw[j])
			}
		}
		rows = append(rows, &sheetRow{
			store:    s,
			table:    table,
			header:   header,
			values:   values,
			rowIndex: i + 2,
		})
	}
	return rows, nil
}

// FindRow scans the tab for the first matching row.
func (s *SheetsStore) FindRow(ctx context.Context, table string, match func(Row) bool) (Row, error) {
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

// AddRow appends one row.
func (s *SheetsStore) AddRow(ctx context.Context, table string, object map[string]string) error {
	return s.AppendRows(ctx, table, []map[string]string{object})
}

// AppendRows appends a batch of rows in order, mapping each object through
// the tab's header.
func (s *SheetsStore) AppendRows(ctx context.Context, table string, objects []map[string]string) error {
	if len(objects) == 0 {
		return nil
	}

	header, err := s.readHeader(ctx, table)
	if err != nil {
		return err
	}

	values := make([][]interface{}, 0, len(objects))
	for _, object := range objects {
		cells := make([]interface{}, len(header))
		for i, col := range header {
			cells[i] = object[col]
		}
		values = append(values, cells)
	}

	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, table, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return errors.Wrapf(err, "failed to append %d rows to %s", len(objects), table)
	}
	return nil
}

func (s *SheetsStore) readHeader(ctx context.Context, table string) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, fmt.Sprintf("%s!1:1", table)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read header of %s", table)
	}
	if len(resp.Values) == 0 {
		return nil, errors.Errorf("table %s has no header row", table)
	}
	header := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(cell))
	}
	return header, nil
}

// columnLetter converts a 1-based column count to its A1 letter.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
