package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
)

func newMovementService(store *rowstore.MemoryStore) *MovementService {
	return NewMovementService(store, staticStores{
		"Fra Diavolo Centro":  "FDC",
		"Fra Diavolo Navigli": "FDN",
	})
}

func transferInput() CreateMovementsInput {
	return CreateMovementsInput{
		TransferDocumentNumber: "TRF-100",
		MovementDate:           "2024-03-14",
		OriginStore:            "Fra Diavolo Centro",
		DestinationStore:       "Fra Diavolo Navigli",
		CreatedBy:              "mario@fradiavolo.it",
		Lines: []MovementLine{
			{Product: "Farina 00", Quantity: 25, Unit: "KG"},
			{Product: "Fior di latte", Quantity: 12.5, Unit: "KG"},
		},
	}
}

func TestCreateMovementsValidation(t *testing.T) {
	svc := newMovementService(rowstore.NewMemoryStore())

	cases := []struct {
		name   string
		mutate func(*CreateMovementsInput)
	}{
		{"missing document number", func(in *CreateMovementsInput) { in.TransferDocumentNumber = "  " }},
		{"missing origin", func(in *CreateMovementsInput) { in.OriginStore = "" }},
		{"missing destination", func(in *CreateMovementsInput) { in.DestinationStore = "" }},
		{"no lines", func(in *CreateMovementsInput) { in.Lines = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := transferInput()
			tc.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestCreateMovementsPersistsBatchAndInvoice(t *testing.T) {
	store := rowstore.NewMemoryStore()
	svc := newMovementService(store)

	res, err := svc.Create(context.Background(), transferInput())
	require.NoError(t, err)
	require.Len(t, res.Movements, 2)
	require.True(t, res.InvoiceCreated)
	require.NotEmpty(t, res.InvoiceID)

	movements, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, mov := range movements {
		require.NotEmpty(t, mov.ID)
		require.Equal(t, "TRF-100", mov.TransferDocumentNumber)
		require.Equal(t, "FDC", mov.OriginCode)
		require.Equal(t, "FDN", mov.DestinationCode)
		require.Equal(t, models.StatusPending, mov.Status)
	}
	require.Equal(t, "25", movements[0].Quantity)
	require.Equal(t, "12.5", movements[1].Quantity)

	row, err := store.FindRow(context.Background(), rowstore.TableInvoices, func(r rowstore.Row) bool {
		return r.Get(models.ColNumero) == "TRF-100"
	})
	require.NoError(t, err)
	require.Equal(t, res.InvoiceID, row.Get(models.ColID))
	require.Equal(t, models.StatusPending, row.Get(models.ColStato))
	require.Equal(t, "Fra Diavolo Centro", row.Get(models.ColFornitore))
	require.Equal(t, "Fra Diavolo Navigli", row.Get(models.ColPuntoVendita))

	// The DDT body is reconstructed in the pipe grammar, one line per product.
	require.Equal(t,
		"Farina 00 | Farina 00 | KG | 25\nFior di latte | Fior di latte | KG | 12.5",
		row.Get(models.ColTestoDDT))
	require.Equal(t, row.Get(models.ColTestoDDT), row.Get(models.ColTxt))
}

func TestCreateMovementsIsIdempotentOnInvoice(t *testing.T) {
	store := rowstore.NewMemoryStore()
	svc := newMovementService(store)

	first, err := svc.Create(context.Background(), transferInput())
	require.NoError(t, err)
	require.True(t, first.InvoiceCreated)

	second, err := svc.Create(context.Background(), transferInput())
	require.NoError(t, err)
	require.False(t, second.InvoiceCreated)
	require.Equal(t, first.InvoiceID, second.InvoiceID)

	rows, err := store.Rows(context.Background(), rowstore.TableInvoices)
	require.NoError(t, err)
	require.Len(t, rows, 1, "one invoice per transfer document number")

	movements, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, movements, 4, "movement rows always append")
}

func TestCreateMovementsDefaultsDate(t *testing.T) {
	svc := newMovementService(rowstore.NewMemoryStore())

	input := transferInput()
	input.MovementDate = ""
	res, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.NotEmpty(t, res.Movements[0].MovementDate)
}

func TestListMovementsFiltersByStore(t *testing.T) {
	svc := newMovementService(rowstore.NewMemoryStore())

	_, err := svc.Create(context.Background(), transferInput())
	require.NoError(t, err)

	other := transferInput()
	other.TransferDocumentNumber = "TRF-101"
	other.OriginStore = "Fra Diavolo Navigli"
	other.DestinationStore = "Fra Diavolo Centro"
	_, err = svc.Create(context.Background(), other)
	require.NoError(t, err)

	centro, err := svc.List(context.Background(), "Fra Diavolo Centro")
	require.NoError(t, err)
	require.Len(t, centro, 4, "matches both origin and destination")

	none, err := svc.List(context.Background(), "Fra Diavolo Isola")
	require.NoError(t, err)
	require.Empty(t, none)
}
