// Package artifact derives, writes and replaces the per-invoice text files
// that mirror confirmed deliveries on disk. Filenames encode invoice
// identity and error state; every destructive operation is preceded by a
// timestamped backup copy.
package artifact

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
)

// ErrArtifactNotFound is returned when no live artifact exists for an
// invoice number.
var ErrArtifactNotFound = errors.New("artifact not found")

const (
	extension   = ".txt"
	errorSuffix = "_ERRORI"

	// unknownStoreCode is used when punto_vendita cannot be resolved; an
	// unresolved store never fails artifact generation.
	unknownStoreCode = "UNKNOWN"
)

// StoreCodes resolves a store name to its short code.
type StoreCodes interface {
	Code(storeName string) (string, bool)
}

// Manager owns the artifact lifecycle for one directory.
type Manager struct {
	dir    Directory
	stores StoreCodes
	now    func() time.Time
}

// NewManager creates a manager over the given directory and store lookup.
func NewManager(dir Directory, stores StoreCodes) *Manager {
	return &Manager{dir: dir, stores: stores, now: time.Now}
}

// Result reports what a Generate call did.
type Result struct {
	Skipped   bool   `json:"skipped"`
	Filename  string `json:"filename"`
	Size      int    `json:"size"`
	HasErrors bool   `json:"has_errors"`
	Replaced  int    `json:"replaced"`
}

// Content is what ReadArtifact serves.
type Content struct {
	Filename  string `json:"filename"`
	Body      string `json:"body"`
	HasErrors bool   `json:"has_errors"`
}

// Sanitize replaces filesystem-unsafe characters and whitespace runs with a
// single underscore, collapses repeated underscores and trims them.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteByte('_')
		default:
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				b.WriteByte('_')
			} else {
				b.WriteRune(r)
			}
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// Filename derives the canonical artifact name for an invoice snapshot.
// data_consegna is used verbatim: it is already in a sortable date form.
func (m *Manager) Filename(inv models.Invoice, hasErrors bool) string {
	name := fmt.Sprintf("%s_%s_%s_%s",
		Sanitize(inv.Numero),
		inv.DataConsegna,
		Sanitize(inv.Fornitore),
		Sanitize(m.storeCode(inv.PuntoVendita)),
	)
	if hasErrors {
		name += errorSuffix
	}
	return name + extension
}

func (m *Manager) storeCode(storeName string) string {
	if m.stores != nil {
		if code, ok := m.stores.Code(storeName); ok {
			return code
		}
	}
	log.Warn().Str("store", storeName).Msg("store code not resolved, using UNKNOWN")
	return unknownStoreCode
}

// invoicePrefix groups all artifacts of one invoice regardless of the error
// suffix they were written under.
func invoicePrefix(numero string) string {
	return Sanitize(numero) + "_"
}

// Generate writes the artifact for an invoice snapshot, archiving and
// removing any prior artifact for the same invoice number first. At most one
// live artifact exists per invoice.
func (m *Manager) Generate(inv models.Invoice) (Result, error) {
	if inv.Numero == "" || inv.DataConsegna == "" || inv.Fornitore == "" || strings.TrimSpace(inv.Txt) == "" {
		// Empty artifacts are a valid no-op, not a fault.
		return Result{Skipped: true}, nil
	}

	hasErrors := inv.HasErrors()
	filename := m.Filename(inv, hasErrors)

	replaced, err := m.archivePriorArtifacts(inv.Numero)
	if err != nil {
		return Result{}, err
	}

	body := []byte(inv.Txt)
	if err := m.dir.Write(filename, body); err != nil {
		return Result{}, err
	}

	log.Info().
		Str("numero", inv.Numero).
		Str("filename", filename).
		Int("replaced", replaced).
		Bool("has_errors", hasErrors).
		Msg("artifact written")

	return Result{
		Filename:  filename,
		Size:      len(body),
		HasErrors: hasErrors,
		Replaced:  replaced,
	}, nil
}

// archivePriorArtifacts backs up and deletes every live artifact carrying
// the invoice's filename prefix. All matches are archived before the caller
// writes the replacement.
func (m *Manager) archivePriorArtifacts(numero string) (int, error) {
	names, err := m.dir.List()
	if err != nil {
		return 0, err
	}

	prefix := invoicePrefix(numero)
	replaced := 0
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) || isBackupName(name) {
			continue
		}
		data, err := m.dir.Read(name)
		if err != nil {
			return replaced, err
		}
		backup := fmt.Sprintf("REPLACED_%s.backup.%d", name, m.now().UnixMilli())
		if err := m.dir.Write(backup, data); err != nil {
			return replaced, err
		}
		if err := m.dir.Delete(name); err != nil {
			return replaced, err
		}
		replaced++
	}
	return replaced, nil
}

func isBackupName(name string) bool {
	return strings.Contains(name, ".backup.")
}

// ReadArtifact serves an invoice's artifact, reconciling the filename with
// the authoritative error state: a file missing the _ERRORI suffix while the
// invoice data says errors exist is renamed in place before being served.
// When the rename fails the old name is served; the reported error flag
// always comes from the invoice data, not the name on disk.
func (m *Manager) ReadArtifact(inv models.Invoice) (Content, error) {
	names, err := m.dir.List()
	if err != nil {
		return Content{}, err
	}

	prefix := invoicePrefix(inv.Numero)
	var live string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) && !isBackupName(name) {
			live = name
			break
		}
	}
	if live == "" {
		return Content{}, ErrArtifactNotFound
	}

	hasErrors := inv.HasErrors()
	if hasErrors && !strings.Contains(live, errorSuffix+extension) {
		renamed := strings.TrimSuffix(live, extension) + errorSuffix + extension
		if err := m.dir.Rename(live, renamed); err != nil {
			log.Warn().Err(err).Str("filename", live).Msg("artifact rename failed, serving old name")
		} else {
			live = renamed
		}
	}

	data, err := m.dir.Read(live)
	if err != nil {
		return Content{}, err
	}

	return Content{Filename: live, Body: string(data), HasErrors: hasErrors}, nil
}

// ReadRaw returns an artifact's bytes by exact filename.
func (m *Manager) ReadRaw(name string) ([]byte, error) {
	data, err := m.dir.Read(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Edit overwrites an artifact, preserving the previous bytes in a
// timestamped backup first.
func (m *Manager) Edit(name string, body []byte) error {
	data, err := m.ReadRaw(name)
	if err != nil {
		return err
	}
	backup := fmt.Sprintf("%s.backup.%d", name, m.now().UnixMilli())
	if err := m.dir.Write(backup, data); err != nil {
		return err
	}
	return m.dir.Write(name, body)
}

// Delete removes an artifact after writing a recoverable copy.
func (m *Manager) Delete(name string) error {
	data, err := m.ReadRaw(name)
	if err != nil {
		return err
	}
	backup := fmt.Sprintf("DELETED_%s.backup.%d", name, m.now().UnixMilli())
	if err := m.dir.Write(backup, data); err != nil {
		return err
	}
	return m.dir.Delete(name)
}

// Stat returns an artifact's file metadata.
func (m *Manager) Stat(name string) (FileInfo, error) {
	return m.dir.Stat(name)
}

// List returns the live (non-backup) artifacts in the directory.
func (m *Manager) List() ([]string, error) {
	names, err := m.dir.List()
	if err != nil {
		return nil, err
	}
	live := names[:0]
	for _, name := range names {
		if !isBackupName(name) {
			live = append(live, name)
		}
	}
	return live, nil
}
