// Package notify dispatches discrepancy notifications when a store reports
// a delivery problem. Dispatch is fire-and-forget: the invoice row is
// already saved when a notification goes out, and a dispatch failure never
// fails the request.
package notify

import (
	"context"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
)

// Payload carries everything the receiving side needs to render or route
// the notification.
type Payload struct {
	InvoiceID     string                   `json:"invoice_id"`
	Numero        string                   `json:"numero"`
	Fornitore     string                   `json:"fornitore"`
	PuntoVendita  string                   `json:"punto_vendita"`
	DeliveryDate  string                   `json:"data_consegna"`
	ReportedBy    string                   `json:"segnalato_da"`
	RawDDT        string                   `json:"testo_ddt"`
	Report        models.DiscrepancyReport `json:"errori_consegna"`
	HTMLBody      string                   `json:"html_body"`
	PlaintextBody string                   `json:"text_body"`
}

// Notifier is the outbound notification collaborator.
type Notifier interface {
	Dispatch(ctx context.Context, payload Payload) error
	Close() error
}
