package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeEmpty(t *testing.T) {
	require.Empty(t, Decode(""))
	require.Empty(t, Decode("   \n "))
}

func TestDecodeMalformedReturnsEmpty(t *testing.T) {
	require.Empty(t, Decode("{not json"))
	require.Empty(t, Decode(`{"campo":"note"}`)) // object, not array
}

func TestAppendGrowsInOrder(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	raw := AppendAt("", "note", "", "Box damaged", "mario@fradiavolo.it", now)
	raw = AppendAt(raw, "data_consegna", "2024-01-15", "2024-01-16", "anna@fradiavolo.it", now.Add(time.Hour))

	records := Decode(raw)
	require.Len(t, records, 2)

	require.Equal(t, "note", records[0].Field)
	require.Equal(t, "", records[0].PreviousValue)
	require.Equal(t, "Box damaged", records[0].NewValue)
	require.Equal(t, "mario@fradiavolo.it", records[0].ChangedBy)
	require.Equal(t, "2024-01-15T10:30:00Z", records[0].Timestamp)
	require.Equal(t, "15/01/2024 10:30", records[0].ChangeDate)

	require.Equal(t, "data_consegna", records[1].Field)
	require.Equal(t, "2024-01-15", records[1].PreviousValue)
	require.Equal(t, "2024-01-16", records[1].NewValue)
}

func TestAppendOnCorruptedHistoryStartsFresh(t *testing.T) {
	raw := AppendAt("garbage", "note", "a", "b", "x@y.it", time.Now())
	records := Decode(raw)
	require.Len(t, records, 1)
	require.Equal(t, "note", records[0].Field)
}

func TestAppendKeepsExistingRecordsUntouched(t *testing.T) {
	now := time.Now()
	raw := AppendAt("", "note", "", "v1", "x@y.it", now)
	before := Decode(raw)

	raw = AppendAt(raw, "note", "v1", "v2", "x@y.it", now)
	after := Decode(raw)

	require.Equal(t, before[0], after[0])
	require.Len(t, after, 2)
}
