package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/services"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/tracing"
)

// InvoiceHandler handles invoice-related HTTP requests.
type InvoiceHandler struct {
	invoices *services.InvoiceService
	tracer   tracing.Tracer
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(invoices *services.InvoiceService, tracer tracing.Tracer) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, tracer: tracer}
}

// canAccess reports whether the caller may act on an invoice. Operators are
// scoped to their own store; admins see everything.
func canAccess(operator models.Operator, inv models.Invoice) bool {
	return operator.Role == models.RoleAdmin || operator.Store == inv.PuntoVendita
}

// List serves the caller's invoices with an optional status filter.
func (h *InvoiceHandler) List(c *gin.Context) {
	operator := CurrentOperator(c)

	store := c.Query("punto_vendita")
	if operator.Role != models.RoleAdmin {
		store = operator.Store
	}

	invoices, err := h.invoices.List(c.Request.Context(), store, c.Query("stato"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": toInvoiceViews(invoices)})
}

// Detail serves one invoice plus the on-demand parse of its DDT text.
func (h *InvoiceHandler) Detail(c *gin.Context) {
	detail, err := h.invoices.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	if !canAccess(CurrentOperator(c), detail.Invoice) {
		RespondError(c, ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"invoice":        toInvoiceView(detail.Invoice),
		"righe_ddt":      detail.Lines,
		"righe_scartate": detail.SkippedLines,
	})
}

// ConfirmRequest is the delivery confirmation payload.
type ConfirmRequest struct {
	DeliveryDate string `json:"data_consegna" binding:"required,isodate"`
	Note         string `json:"note"`
}

// Confirm marks an invoice as delivered.
func (h *InvoiceHandler) Confirm(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-confirm-invoice")
	defer h.tracer.EndTransaction(txn)

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, NewValidationError(err.Error()))
		return
	}

	id := c.Param("id")
	operator := CurrentOperator(c)
	h.tracer.AddAttribute(txn, "invoice_id", id)
	h.tracer.AddAttribute(txn, "operator", operator.Email)

	if err := h.guardInvoice(c, id, operator); err != nil {
		h.tracer.RecordError(txn, err)
		RespondError(c, err)
		return
	}

	inv, err := h.invoices.Confirm(c.Request.Context(), id, req.DeliveryDate, operator.Email, req.Note)
	if err != nil {
		h.tracer.RecordError(txn, err)
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": toInvoiceView(inv)})
}

// UpdateRequest is a generic field patch.
type UpdateRequest struct {
	Updates map[string]string `json:"updates" binding:"required"`
}

// Update applies a field patch, auditing changes on delivered invoices.
func (h *InvoiceHandler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, NewValidationError(err.Error()))
		return
	}

	id := c.Param("id")
	operator := CurrentOperator(c)
	if err := h.guardInvoice(c, id, operator); err != nil {
		RespondError(c, err)
		return
	}

	inv, err := h.invoices.Update(c.Request.Context(), id, req.Updates, operator.Email)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": toInvoiceView(inv)})
}

// ReportErrorRequest is a delivery discrepancy submission.
type ReportErrorRequest struct {
	DeliveryDate string              `json:"data_consegna" binding:"required,isodate"`
	Notes        string              `json:"note"`
	Lines        []ReportedLineInput `json:"righe"`
}

// ReportedLineInput is one DDT line in a discrepancy submission.
type ReportedLineInput struct {
	LineNumber       int     `json:"riga"`
	ProductCode      string  `json:"codice"`
	ProductName      string  `json:"prodotto"`
	Unit             string  `json:"unita"`
	OrderedQuantity  float64 `json:"qta_ordinata"`
	ReceivedQuantity float64 `json:"qta_ricevuta"`
	Reason           string  `json:"motivo"`
	Modified         bool    `json:"modificata"`
}

// ReportError records a delivery problem for an invoice.
func (h *InvoiceHandler) ReportError(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-report-delivery-error")
	defer h.tracer.EndTransaction(txn)

	var req ReportErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, NewValidationError(err.Error()))
		return
	}

	id := c.Param("id")
	operator := CurrentOperator(c)
	h.tracer.AddAttribute(txn, "invoice_id", id)

	if err := h.guardInvoice(c, id, operator); err != nil {
		h.tracer.RecordError(txn, err)
		RespondError(c, err)
		return
	}

	input := services.ReportErrorInput{
		InvoiceID:     id,
		DeliveryDate:  req.DeliveryDate,
		FreeTextNotes: req.Notes,
		ReporterEmail: operator.Email,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, services.ReportedLine{
			LineDiscrepancy: models.LineDiscrepancy{
				LineNumber:       line.LineNumber,
				ProductCode:      line.ProductCode,
				ProductName:      line.ProductName,
				Unit:             line.Unit,
				OrderedQuantity:  line.OrderedQuantity,
				ReceivedQuantity: line.ReceivedQuantity,
				Reason:           line.Reason,
			},
			Modified: line.Modified,
		})
	}

	inv, err := h.invoices.ReportError(c.Request.Context(), input)
	if err != nil {
		h.tracer.RecordError(txn, err)
		RespondError(c, err)
		return
	}

	log.Info().Str("invoice_id", id).Str("operator", operator.Email).Msg("Delivery error reported")
	c.JSON(http.StatusOK, gin.H{"invoice": toInvoiceView(inv)})
}

// Artifact serves the invoice's text artifact.
func (h *InvoiceHandler) Artifact(c *gin.Context) {
	id := c.Param("id")
	operator := CurrentOperator(c)
	if err := h.guardInvoice(c, id, operator); err != nil {
		RespondError(c, err)
		return
	}

	content, err := h.invoices.ReadArtifact(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

// Dashboard serves the cross-store aggregates.
func (h *InvoiceHandler) Dashboard(c *gin.Context) {
	dash, err := h.invoices.Dashboard(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *InvoiceHandler) guardInvoice(c *gin.Context, id string, operator models.Operator) error {
	inv, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		return err
	}
	if !canAccess(operator, inv) {
		return ErrForbidden
	}
	return nil
}

// InvoiceView is the JSON shape of an invoice.
type InvoiceView struct {
	ID            string `json:"id"`
	Numero        string `json:"numero"`
	Fornitore     string `json:"fornitore"`
	DataEmissione string `json:"data_emissione"`
	PuntoVendita  string `json:"punto_vendita"`
	Stato         string `json:"stato"`
	DataConsegna  string `json:"data_consegna"`
	ConfermatoDa  string `json:"confermato_da"`
	Note          string `json:"note"`
	HasErrors     bool   `json:"has_errors"`
}

func toInvoiceView(inv models.Invoice) InvoiceView {
	return InvoiceView{
		ID:            inv.ID,
		Numero:        inv.Numero,
		Fornitore:     inv.Fornitore,
		DataEmissione: inv.DataEmissione,
		PuntoVendita:  inv.PuntoVendita,
		Stato:         inv.Stato,
		DataConsegna:  inv.DataConsegna,
		ConfermatoDa:  inv.ConfermatoDa,
		Note:          inv.Note,
		HasErrors:     inv.HasErrors(),
	}
}

func toInvoiceViews(invoices []models.Invoice) []InvoiceView {
	views := make([]InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, toInvoiceView(inv))
	}
	return views
}
