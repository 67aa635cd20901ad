package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/ddt"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
)

// MovementService records stock transfers between stores and synthesizes the
// receiving side's invoice so the destination confirms a transfer through the
// same flow as a supplier delivery.
type MovementService struct {
	store  rowstore.Store
	stores StoreCodes
	now    func() time.Time
}

// NewMovementService wires the service.
func NewMovementService(store rowstore.Store, stores StoreCodes) *MovementService {
	return &MovementService{store: store, stores: stores, now: time.Now}
}

// MovementLine is one transferred product.
type MovementLine struct {
	Product  string  `json:"prodotto" binding:"required"`
	Quantity float64 `json:"quantita" binding:"required"`
	Unit     string  `json:"unita" binding:"required"`
}

// CreateMovementsInput is one transfer batch. All lines share the transfer
// document number, origin and destination.
type CreateMovementsInput struct {
	TransferDocumentNumber string
	MovementDate           string
	OriginStore            string
	DestinationStore       string
	Lines                  []MovementLine
	CreatedBy              string
}

// CreateResult reports the persisted batch and whether a synthetic invoice
// was created for it.
type CreateResult struct {
	Movements      []models.Movement `json:"movimenti"`
	InvoiceID      string            `json:"invoice_id"`
	InvoiceCreated bool              `json:"invoice_creata"`
}

// Create persists the batch to the Movimenti sheet, then ensures exactly one
// invoice exists for the transfer document number. Re-submitting a batch for
// a number that already has an invoice appends the movements but does not
// create a second invoice.
func (s *MovementService) Create(ctx context.Context, input CreateMovementsInput) (CreateResult, error) {
	number := strings.TrimSpace(input.TransferDocumentNumber)
	if number == "" {
		return CreateResult{}, validationErr("numero_documento", "transfer document number is required")
	}
	if input.OriginStore == "" || input.DestinationStore == "" {
		return CreateResult{}, validationErr("punto_vendita", "origin and destination stores are required")
	}
	if len(input.Lines) == 0 {
		return CreateResult{}, validationErr("righe", "at least one movement line is required")
	}

	now := s.now()
	movementDate := input.MovementDate
	if movementDate == "" {
		movementDate = now.Format(deliveryDateLayout)
	}

	originCode := s.code(input.OriginStore)
	destCode := s.code(input.DestinationStore)

	movements := make([]models.Movement, 0, len(input.Lines))
	objects := make([]map[string]string, 0, len(input.Lines))
	for _, line := range input.Lines {
		mov := models.Movement{
			ID:                     uuid.NewString(),
			MovementDate:           movementDate,
			Timestamp:              now.Format(time.RFC3339),
			OriginStore:            input.OriginStore,
			OriginCode:             originCode,
			Product:                line.Product,
			Quantity:               strconv.FormatFloat(line.Quantity, 'f', -1, 64),
			Unit:                   line.Unit,
			DestinationStore:       input.DestinationStore,
			DestinationCode:        destCode,
			Status:                 models.StatusPending,
			CreatedBy:              input.CreatedBy,
			TransferDocumentNumber: number,
		}
		movements = append(movements, mov)
		objects = append(objects, mov.ToRowObject())
	}

	if err := s.store.AppendRows(ctx, rowstore.TableMovements, objects); err != nil {
		return CreateResult{}, errors.Wrap(err, "failed to append movements")
	}

	invoiceID, created, err := s.ensureInvoice(ctx, number, movementDate, input)
	if err != nil {
		// The movements are durable; the invoice can be synthesized on retry.
		log.Error().Err(err).Str("numero_documento", number).Msg("synthetic invoice creation failed")
		return CreateResult{Movements: movements}, errors.Wrap(err, "failed to create transfer invoice")
	}

	log.Info().
		Str("numero_documento", number).
		Int("lines", len(movements)).
		Bool("invoice_created", created).
		Msg("movement batch saved")

	return CreateResult{Movements: movements, InvoiceID: invoiceID, InvoiceCreated: created}, nil
}

// ensureInvoice creates the destination-side invoice for a transfer document
// number unless one already exists.
func (s *MovementService) ensureInvoice(ctx context.Context, number, movementDate string, input CreateMovementsInput) (string, bool, error) {
	existing, err := s.store.FindRow(ctx, rowstore.TableInvoices, func(r rowstore.Row) bool {
		return r.Get(models.ColNumero) == number
	})
	if err == nil {
		return existing.Get(models.ColID), false, nil
	}
	if !errors.Is(err, rowstore.ErrRowNotFound) {
		return "", false, errors.Wrap(err, "failed to look up transfer invoice")
	}

	lines := make([]ddt.Line, 0, len(input.Lines))
	for i, line := range input.Lines {
		lines = append(lines, ddt.Line{
			LineNumber:  i + 1,
			ProductCode: line.Product,
			ProductName: line.Product,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
		})
	}

	id := fmt.Sprintf("ddt_%d_%s", s.now().UnixMilli(), number)
	body := ddt.ReconstructRaw(lines)
	object := map[string]string{
		models.ColID:            id,
		models.ColNumero:        number,
		models.ColFornitore:     input.OriginStore,
		models.ColDataEmissione: movementDate,
		models.ColPuntoVendita:  input.DestinationStore,
		models.ColStato:         models.StatusPending,
		models.ColTxt:           body,
		models.ColTestoDDT:      body,
	}
	if err := s.store.AddRow(ctx, rowstore.TableInvoices, object); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// List returns movements, filtered by origin or destination store when
// non-empty.
func (s *MovementService) List(ctx context.Context, store string) ([]models.Movement, error) {
	rows, err := s.store.Rows(ctx, rowstore.TableMovements)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load movements")
	}
	out := make([]models.Movement, 0, len(rows))
	for _, row := range rows {
		mov := models.MovementFromRow(row)
		if store != "" && mov.OriginStore != store && mov.DestinationStore != store {
			continue
		}
		out = append(out, mov)
	}
	return out, nil
}

func (s *MovementService) code(storeName string) string {
	if s.stores != nil {
		if code, ok := s.stores.Code(storeName); ok {
			return code
		}
	}
	return ""
}
