// Package services orchestrates the invoice lifecycle over the spreadsheet
// row store: delivery confirmation, audited edits, discrepancy reports and
// stock transfers. Row saves are the single source of truth; artifact writes
// and notifications are derived, best-effort side effects.
package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/artifact"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/ddt"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/history"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/metrics"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/notify"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
)

const deliveryDateLayout = "2006-01-02"

// Indexer is the optional search collaborator; indexing is best-effort.
type Indexer interface {
	IndexInvoice(ctx context.Context, inv models.Invoice, storeCode string) error
}

// StoreCodes resolves a store name to its short code.
type StoreCodes interface {
	Code(storeName string) (string, bool)
}

// InvoiceService handles invoice reads, confirmation, audited updates and
// discrepancy reports.
type InvoiceService struct {
	store     rowstore.Store
	artifacts *artifact.Manager
	notifier  notify.Notifier
	indexer   Indexer
	stores    StoreCodes
	parser    ddt.Parser
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewInvoiceService wires the service. notifier and indexer may be nil; the
// corresponding side effects are skipped.
func NewInvoiceService(
	store rowstore.Store,
	artifacts *artifact.Manager,
	notifier notify.Notifier,
	indexer Indexer,
	stores StoreCodes,
	parser ddt.Parser,
	m *metrics.Metrics,
) *InvoiceService {
	return &InvoiceService{
		store:     store,
		artifacts: artifacts,
		notifier:  notifier,
		indexer:   indexer,
		stores:    stores,
		parser:    parser,
		metrics:   m,
		now:       time.Now,
	}
}

// Get loads one invoice by id.
func (s *InvoiceService) Get(ctx context.Context, id string) (models.Invoice, error) {
	row, err := s.findRow(ctx, id)
	if err != nil {
		return models.Invoice{}, err
	}
	return models.InvoiceFromRow(row), nil
}

// InvoiceDetail is an invoice plus the on-demand parse of its DDT text.
type InvoiceDetail struct {
	Invoice      models.Invoice `json:"invoice"`
	Lines        []ddt.Line     `json:"righe_ddt"`
	SkippedLines int            `json:"righe_scartate"`
}

// Detail loads an invoice together with its parsed DDT lines.
func (s *InvoiceService) Detail(ctx context.Context, id string) (InvoiceDetail, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return InvoiceDetail{}, err
	}
	res := s.parser.ParseDocument(inv.TestoDDT)
	if res.Skipped > 0 {
		log.Info().Str("invoice_id", id).Int("skipped", res.Skipped).Msg("DDT lines not recognized")
	}
	return InvoiceDetail{Invoice: inv, Lines: res.Lines, SkippedLines: res.Skipped}, nil
}

// List returns invoices, filtered by store and/or status when non-empty.
func (s *InvoiceService) List(ctx context.Context, store, status string) ([]models.Invoice, error) {
	rows, err := s.store.Rows(ctx, rowstore.TableInvoices)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load invoices")
	}
	out := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		inv := models.InvoiceFromRow(row)
		if store != "" && inv.PuntoVendita != store {
			continue
		}
		if status != "" && inv.Stato != status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

// Confirm marks a pending invoice as delivered.
func (s *InvoiceService) Confirm(ctx context.Context, id, deliveryDate, reporterEmail, note string) (models.Invoice, error) {
	if id == "" {
		return models.Invoice{}, validationErr("id", "id is required")
	}
	if err := s.validateDeliveryDate(deliveryDate); err != nil {
		return models.Invoice{}, err
	}

	updates := map[string]string{
		models.ColStato:        models.StatusDelivered,
		models.ColDataConsegna: deliveryDate,
		models.ColConfermatoDa: reporterEmail,
	}
	if note != "" {
		updates[models.ColNote] = note
	}
	return s.Update(ctx, id, updates, reporterEmail)
}

// Update is the core mutation primitive: a generic field patch with audit
// diffing. While an invoice is consegnato, every field whose value actually
// changes gets one appended change record; all records of one call share a
// single history write. The artifact is regenerated when the call delivered
// the invoice or recorded at least one audit entry.
func (s *InvoiceService) Update(ctx context.Context, id string, updates map[string]string, actorEmail string) (models.Invoice, error) {
	row, err := s.findRow(ctx, id)
	if err != nil {
		return models.Invoice{}, err
	}

	prev := models.InvoiceFromRow(row)
	wasDelivered := prev.Delivered()

	fields := make([]string, 0, len(updates))
	for field := range updates {
		if field == models.ColStoricoModifiche {
			// The audit column is never patched directly.
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	historyRaw := prev.StoricoModifiche
	audited := 0
	if wasDelivered {
		for _, field := range fields {
			previous := row.Get(field)
			next := updates[field]
			if previous == next {
				continue
			}
			historyRaw = history.AppendAt(historyRaw, field, previous, next, actorEmail, s.now())
			audited++
		}
	}

	for _, field := range fields {
		row.Set(field, updates[field])
	}
	if audited > 0 {
		row.Set(models.ColStoricoModifiche, historyRaw)
	}

	if err := row.Save(ctx); err != nil {
		return models.Invoice{}, errors.Wrap(err, "failed to save invoice")
	}

	post := models.InvoiceFromRow(row)
	becameDelivered := !wasDelivered && post.Delivered()

	if s.metrics != nil {
		s.metrics.IncrementCounter("invoice_updates")
	}
	log.Info().
		Str("invoice_id", id).
		Str("actor", actorEmail).
		Int("audited_fields", audited).
		Bool("delivered", post.Delivered()).
		Msg("invoice updated")

	if post.Delivered() && (becameDelivered || audited > 0) {
		s.regenerateArtifact(post, !becameDelivered)
		s.indexInvoice(ctx, post)
	}

	return post, nil
}

// ReportedLine is one line of a discrepancy submission. Only lines flagged
// Modified end up in the persisted report.
type ReportedLine struct {
	models.LineDiscrepancy
	Modified bool
}

// ReportErrorInput is a discrepancy submission.
type ReportErrorInput struct {
	InvoiceID     string
	DeliveryDate  string
	Lines         []ReportedLine
	FreeTextNotes string
	ReporterEmail string
}

// ReportError validates and persists a discrepancy report, then dispatches
// a notification and regenerates the artifact, both best-effort. This path
// writes the row directly: the invoice may be leaving pending for the first
// time, so the generic update's audit diffing does not apply.
func (s *InvoiceService) ReportError(ctx context.Context, input ReportErrorInput) (models.Invoice, error) {
	if input.InvoiceID == "" {
		return models.Invoice{}, validationErr("id", "id is required")
	}
	if err := s.validateDeliveryDate(input.DeliveryDate); err != nil {
		return models.Invoice{}, err
	}

	modified := make([]models.LineDiscrepancy, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Modified {
			modified = append(modified, line.LineDiscrepancy)
		}
	}
	if len(modified) == 0 && strings.TrimSpace(input.FreeTextNotes) == "" {
		return models.Invoice{}, validationErr("", "report has no modified lines and no notes")
	}

	row, err := s.findRow(ctx, input.InvoiceID)
	if err != nil {
		return models.Invoice{}, err
	}

	now := s.now()
	report := models.DiscrepancyReport{
		Timestamp:         now.Format(time.RFC3339),
		DeliveryDate:      input.DeliveryDate,
		ReportingUser:     input.ReporterEmail,
		LineDiscrepancies: modified,
		FreeTextNotes:     strings.TrimSpace(input.FreeTextNotes),
		ModifiedLineCount: len(modified),
		TotalLineCount:    len(input.Lines),
	}

	row.Set(models.ColErroriConsegna, report.Encode())
	row.Set(models.ColStato, models.StatusDelivered)
	row.Set(models.ColDataConsegna, input.DeliveryDate)
	row.Set(models.ColConfermatoDa, input.ReporterEmail)

	if err := row.Save(ctx); err != nil {
		return models.Invoice{}, errors.Wrap(err, "failed to save discrepancy report")
	}

	post := models.InvoiceFromRow(row)

	if s.metrics != nil {
		s.metrics.IncrementCounter("discrepancy_reports")
	}
	log.Info().
		Str("invoice_id", input.InvoiceID).
		Str("reporter", input.ReporterEmail).
		Int("modified_lines", len(modified)).
		Msg("discrepancy report saved")

	s.dispatchNotification(ctx, post, report)
	s.regenerateArtifact(post, true)
	s.indexInvoice(ctx, post)

	return post, nil
}

// ReadArtifact serves the invoice's artifact through the rename-on-read
// reconciliation path.
func (s *InvoiceService) ReadArtifact(ctx context.Context, id string) (artifact.Content, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return artifact.Content{}, err
	}
	return s.artifacts.ReadArtifact(inv)
}

func (s *InvoiceService) regenerateArtifact(inv models.Invoice, isModification bool) {
	res, err := s.artifacts.Generate(inv)
	if err != nil {
		// The row is already durable; the artifact is reconstructable.
		log.Error().Err(err).Str("invoice_id", inv.ID).Msg("artifact generation failed")
		if s.metrics != nil {
			s.metrics.IncrementCounter("artifact_failures")
		}
		return
	}
	if res.Skipped {
		log.Debug().Str("invoice_id", inv.ID).Msg("artifact generation skipped")
		return
	}
	log.Info().
		Str("invoice_id", inv.ID).
		Str("filename", res.Filename).
		Bool("modification", isModification).
		Msg("artifact regenerated")
}

func (s *InvoiceService) dispatchNotification(ctx context.Context, inv models.Invoice, report models.DiscrepancyReport) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, notify.BuildPayload(inv, report)); err != nil {
		log.Error().Err(err).Str("invoice_id", inv.ID).Msg("discrepancy notification dispatch failed")
		if s.metrics != nil {
			s.metrics.IncrementCounter("notification_failures")
		}
	}
}

func (s *InvoiceService) indexInvoice(ctx context.Context, inv models.Invoice) {
	if s.indexer == nil {
		return
	}
	code := ""
	if s.stores != nil {
		code, _ = s.stores.Code(inv.PuntoVendita)
	}
	if err := s.indexer.IndexInvoice(ctx, inv, code); err != nil {
		log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("invoice indexing failed")
	}
}

func (s *InvoiceService) findRow(ctx context.Context, id string) (rowstore.Row, error) {
	row, err := s.store.FindRow(ctx, rowstore.TableInvoices, func(r rowstore.Row) bool {
		return r.Get(models.ColID) == id
	})
	if errors.Is(err, rowstore.ErrRowNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load invoice")
	}
	return row, nil
}

// validateDeliveryDate requires a calendar-valid date not after today.
func (s *InvoiceService) validateDeliveryDate(deliveryDate string) error {
	if deliveryDate == "" {
		return validationErr("data_consegna", "delivery date is required")
	}
	d, err := time.ParseInLocation(deliveryDateLayout, deliveryDate, time.Local)
	if err != nil {
		return validationErr("data_consegna", "delivery date must be YYYY-MM-DD")
	}
	today := s.now()
	endOfToday := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, time.Local)
	if d.After(endOfToday) {
		return validationErr("data_consegna", "delivery date cannot be in the future")
	}
	return nil
}
