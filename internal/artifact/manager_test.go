package artifact

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
)

type staticStores map[string]string

func (s staticStores) Code(name string) (string, bool) {
	code, ok := s[name]
	return code, ok
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir, err := NewLocalDirectory(t.TempDir())
	require.NoError(t, err)
	m := NewManager(dir, staticStores{"Store X": "SX"})
	ts := time.Now().UnixMilli()
	// Monotonic clock so consecutive backups never collide on the same name.
	m.now = func() time.Time {
		ts++
		return time.UnixMilli(ts)
	}
	return m
}

func baseInvoice() models.Invoice {
	return models.Invoice{
		ID:           "42",
		Numero:       "1001",
		Fornitore:    "Acme",
		PuntoVendita: "Store X",
		Stato:        models.StatusDelivered,
		DataConsegna: "2024-01-15",
		Txt:          "D1|ProdA|KG|5",
	}
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "a_b", Sanitize("a/b"))
	require.Equal(t, "a_b", Sanitize(`a \ : * ? " < > | b`))
	require.Equal(t, "Pizzeria_Nord", Sanitize("  Pizzeria   Nord  "))
	require.Equal(t, "x", Sanitize("__x__"))
}

func TestFilenameDerivation(t *testing.T) {
	m := newTestManager(t)
	inv := baseInvoice()

	require.Equal(t, "1001_2024-01-15_Acme_SX.txt", m.Filename(inv, false))
	require.Equal(t, "1001_2024-01-15_Acme_SX_ERRORI.txt", m.Filename(inv, true))

	inv.PuntoVendita = "Store sconosciuto"
	require.Equal(t, "1001_2024-01-15_Acme_UNKNOWN.txt", m.Filename(inv, false))
}

func TestGenerateSkipsIncompleteInvoices(t *testing.T) {
	m := newTestManager(t)

	for _, mutate := range []func(*models.Invoice){
		func(i *models.Invoice) { i.Numero = "" },
		func(i *models.Invoice) { i.DataConsegna = "" },
		func(i *models.Invoice) { i.Fornitore = "" },
		func(i *models.Invoice) { i.Txt = "   " },
	} {
		inv := baseInvoice()
		mutate(&inv)
		res, err := m.Generate(inv)
		require.NoError(t, err)
		require.True(t, res.Skipped)
	}

	names, err := m.List()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestGenerateWritesArtifact(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Generate(baseInvoice())
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.Equal(t, "1001_2024-01-15_Acme_SX.txt", res.Filename)
	require.Equal(t, len("D1|ProdA|KG|5"), res.Size)
	require.False(t, res.HasErrors)
	require.Zero(t, res.Replaced)
}

func TestGenerateErrorSuffixFromAnyChannel(t *testing.T) {
	m := newTestManager(t)

	for _, mutate := range []func(*models.Invoice){
		func(i *models.Invoice) { i.Note = "Box damaged" },
		func(i *models.Invoice) { i.ItemNoConv = "riga 3" },
		func(i *models.Invoice) { i.ErroriConsegna = `{"righe":[]}` },
	} {
		inv := baseInvoice()
		mutate(&inv)
		res, err := m.Generate(inv)
		require.NoError(t, err)
		require.True(t, res.HasErrors)
		require.True(t, strings.HasSuffix(res.Filename, "_ERRORI.txt"))
	}
}

func TestGenerateReplacesNotAccumulates(t *testing.T) {
	m := newTestManager(t)
	inv := baseInvoice()

	const n = 4
	for i := 0; i < n; i++ {
		// Alternate error state so the live filename changes between calls.
		if i%2 == 1 {
			inv.Note = "Box damaged"
		} else {
			inv.Note = ""
		}
		res, err := m.Generate(inv)
		require.NoError(t, err)
		if i > 0 {
			require.Equal(t, 1, res.Replaced)
		}
	}

	live, err := m.List()
	require.NoError(t, err)
	require.Len(t, live, 1)

	all, err := m.dir.List()
	require.NoError(t, err)
	backups := 0
	for _, name := range all {
		if strings.HasPrefix(name, "REPLACED_") && strings.Contains(name, ".backup.") {
			backups++
		}
	}
	require.Equal(t, n-1, backups)
}

func TestReadArtifactRenamesOnErrorDiscovery(t *testing.T) {
	m := newTestManager(t)
	inv := baseInvoice()

	_, err := m.Generate(inv)
	require.NoError(t, err)

	// Error channel set after the artifact was written under a clean name.
	inv.Note = "Box damaged"

	content, err := m.ReadArtifact(inv)
	require.NoError(t, err)
	require.Equal(t, "1001_2024-01-15_Acme_SX_ERRORI.txt", content.Filename)
	require.True(t, content.HasErrors)
	require.Equal(t, "D1|ProdA|KG|5", content.Body)

	// The clean-named file is gone.
	live, err := m.List()
	require.NoError(t, err)
	require.Equal(t, []string{"1001_2024-01-15_Acme_SX_ERRORI.txt"}, live)
}

func TestReadArtifactNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.ReadArtifact(baseInvoice())
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestEditBacksUpBeforeWrite(t *testing.T) {
	m := newTestManager(t)
	inv := baseInvoice()
	res, err := m.Generate(inv)
	require.NoError(t, err)

	require.NoError(t, m.Edit(res.Filename, []byte("edited body")))

	data, err := m.dir.Read(res.Filename)
	require.NoError(t, err)
	require.Equal(t, "edited body", string(data))

	all, err := m.dir.List()
	require.NoError(t, err)
	found := false
	for _, name := range all {
		if strings.HasPrefix(name, res.Filename+".backup.") {
			backup, err := m.dir.Read(name)
			require.NoError(t, err)
			require.Equal(t, inv.Txt, string(backup))
			found = true
		}
	}
	require.True(t, found, "expected a backup copy of the pre-edit bytes")
}

func TestDeleteBacksUpBeforeRemoval(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Generate(baseInvoice())
	require.NoError(t, err)

	require.NoError(t, m.Delete(res.Filename))

	live, err := m.List()
	require.NoError(t, err)
	require.Empty(t, live)

	all, err := m.dir.List()
	require.NoError(t, err)
	found := false
	for _, name := range all {
		if strings.HasPrefix(name, "DELETED_"+res.Filename+".backup.") {
			found = true
		}
	}
	require.True(t, found, "expected a DELETED_ backup copy")
}
