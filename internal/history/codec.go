// Package history serializes the append-only change log kept in the
// storico_modifiche column of an invoice row. History is advisory: corrupted
// payloads decode to an empty log instead of failing the operation that
// touched the row.
package history

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ChangeRecord is one field-level edit made to an invoice after its first
// delivery confirmation. Records are immutable once appended.
type ChangeRecord struct {
	Timestamp     string `json:"timestamp"`
	Field         string `json:"campo"`
	PreviousValue string `json:"valore_precedente"`
	NewValue      string `json:"valore_nuovo"`
	ChangedBy     string `json:"modificato_da"`
	ChangeDate    string `json:"data_modifica"`
}

// Decode parses the raw column value into the ordered change log. Blank input
// means no history. Malformed input is logged and treated the same way.
func Decode(raw string) []ChangeRecord {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var records []ChangeRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		log.Warn().Err(err).Msg("storico_modifiche column is malformed, treating as empty")
		return nil
	}
	return records
}

// Append decodes raw, appends one record stamped with the current time and
// returns the re-encoded column value. Pure with respect to persistence: the
// caller saves the returned string.
func Append(raw, field, previousValue, newValue, changedBy string) string {
	return AppendAt(raw, field, previousValue, newValue, changedBy, time.Now())
}

// AppendAt is Append with an explicit clock, for tests.
func AppendAt(raw, field, previousValue, newValue, changedBy string, now time.Time) string {
	records := Decode(raw)
	records = append(records, ChangeRecord{
		Timestamp:     now.Format(time.RFC3339),
		Field:         field,
		PreviousValue: previousValue,
		NewValue:      newValue,
		ChangedBy:     changedBy,
		ChangeDate:    now.Format("02/01/2006 15:04"),
	})
	encoded, err := json.Marshal(records)
	if err != nil {
		// A []ChangeRecord cannot fail to marshal; keep the old value if it
		// somehow does.
		log.Error().Err(err).Msg("failed to encode storico_modifiche")
		return raw
	}
	return string(encoded)
}
