package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveErrorStatePriority(t *testing.T) {
	cases := []struct {
		name string
		inv  Invoice
		want ErrorState
	}{
		{"no channels", Invoice{}, ErrorStateNone},
		{"whitespace only is no error", Invoice{Note: "   ", ItemNoConv: "\t"}, ErrorStateNone},
		{"structured wins over both legacy channels", Invoice{ErroriConsegna: `{"note":"x"}`, Note: "legacy", ItemNoConv: "y"}, ErrorStateStructured},
		{"legacy note wins over conversion", Invoice{Note: "manca un collo", ItemNoConv: "y"}, ErrorStateLegacyNote},
		{"conversion alone", Invoice{ItemNoConv: "POM123"}, ErrorStateLegacyConversion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.inv.ResolveErrorState())
			require.Equal(t, tc.want != ErrorStateNone, tc.inv.HasErrors())
		})
	}
}

func TestDiscrepancyReportRoundTrip(t *testing.T) {
	report := DiscrepancyReport{
		Timestamp:     "2024-03-14T10:00:00Z",
		DeliveryDate:  "2024-03-14",
		ReportingUser: "mario@fradiavolo.it",
		LineDiscrepancies: []LineDiscrepancy{
			{LineNumber: 1, ProductCode: "FAR001", OrderedQuantity: 25, ReceivedQuantity: 20, Reason: "collo mancante"},
		},
		FreeTextNotes:     "un collo danneggiato",
		ModifiedLineCount: 1,
		TotalLineCount:    3,
	}

	decoded, ok := DecodeDiscrepancyReport(report.Encode())
	require.True(t, ok)
	require.Equal(t, report, decoded)
}

func TestDecodeDiscrepancyReportRejectsBlankAndMalformed(t *testing.T) {
	_, ok := DecodeDiscrepancyReport("")
	require.False(t, ok)
	_, ok = DecodeDiscrepancyReport("  ")
	require.False(t, ok)
	_, ok = DecodeDiscrepancyReport("{not json")
	require.False(t, ok)
}

func TestInvoiceFromRowReadsEveryColumn(t *testing.T) {
	row := mapFields{
		ColID:        "inv-1",
		ColNumero:    "DDT-042",
		ColFornitore: "Molino Rossi",
		ColStato:     StatusDelivered,
		ColTestoDDT:  "FAR001 | Farina 00 | KG | 25",
	}

	inv := InvoiceFromRow(row)
	require.Equal(t, "inv-1", inv.ID)
	require.Equal(t, "DDT-042", inv.Numero)
	require.True(t, inv.Delivered())
	require.Equal(t, "FAR001 | Farina 00 | KG | 25", inv.TestoDDT)
}

type mapFields map[string]string

func (m mapFields) Get(field string) string { return m[field] }
