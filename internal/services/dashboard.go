package services

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
)

// StoreSummary aggregates one store's invoice and movement activity.
type StoreSummary struct {
	Store           string `json:"punto_vendita"`
	PendingCount    int    `json:"fatture_in_attesa"`
	DeliveredCount  int    `json:"fatture_consegnate"`
	WithErrorsCount int    `json:"fatture_con_errori"`
	MovementCount   int    `json:"movimenti"`
}

// Dashboard is the cross-store admin view.
type Dashboard struct {
	TotalInvoices  int            `json:"fatture_totali"`
	TotalPending   int            `json:"in_attesa_totali"`
	TotalDelivered int            `json:"consegnate_totali"`
	TotalErrors    int            `json:"con_errori_totali"`
	TotalMovements int            `json:"movimenti_totali"`
	Stores         []StoreSummary `json:"punti_vendita"`
}

// Dashboard loads invoices and movements concurrently and folds them into
// per-store aggregates. Stores appear in first-seen sheet order.
func (s *InvoiceService) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		invoices  []models.Invoice
		movements []models.Movement
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.store.Rows(gctx, rowstore.TableInvoices)
		if err != nil {
			return errors.Wrap(err, "failed to load invoices")
		}
		invoices = make([]models.Invoice, 0, len(rows))
		for _, row := range rows {
			invoices = append(invoices, models.InvoiceFromRow(row))
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.Rows(gctx, rowstore.TableMovements)
		if err != nil {
			return errors.Wrap(err, "failed to load movements")
		}
		movements = make([]models.Movement, 0, len(rows))
		for _, row := range rows {
			movements = append(movements, models.MovementFromRow(row))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	byStore := make(map[string]*StoreSummary)
	var order []string
	summary := func(store string) *StoreSummary {
		if store == "" {
			store = "(sconosciuto)"
		}
		sum, ok := byStore[store]
		if !ok {
			sum = &StoreSummary{Store: store}
			byStore[store] = sum
			order = append(order, store)
		}
		return sum
	}

	dash := Dashboard{TotalInvoices: len(invoices), TotalMovements: len(movements)}
	for _, inv := range invoices {
		sum := summary(inv.PuntoVendita)
		if inv.Delivered() {
			sum.DeliveredCount++
			dash.TotalDelivered++
		} else {
			sum.PendingCount++
			dash.TotalPending++
		}
		if inv.HasErrors() {
			sum.WithErrorsCount++
			dash.TotalErrors++
		}
	}
	for _, mov := range movements {
		summary(mov.OriginStore).MovementCount++
	}

	dash.Stores = make([]StoreSummary, 0, len(order))
	for _, store := range order {
		dash.Stores = append(dash.Stores, *byStore[store])
	}
	return dash, nil
}
