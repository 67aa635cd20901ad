package notify

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
)

var htmlBody = template.Must(template.New("discrepancy").Parse(`<h2>Segnalazione errori consegna</h2>
<p><strong>DDT {{.Invoice.Numero}}</strong> &mdash; {{.Invoice.Fornitore}} &rarr; {{.Invoice.PuntoVendita}}</p>
<p>Segnalato da {{.Report.ReportingUser}} il {{.Report.DeliveryDate}}</p>
{{if .Report.LineDiscrepancies}}<table border="1" cellpadding="4">
<tr><th>Riga</th><th>Codice</th><th>Prodotto</th><th>Ordinato</th><th>Ricevuto</th><th>Motivo</th></tr>
{{range .Report.LineDiscrepancies}}<tr><td>{{.LineNumber}}</td><td>{{.ProductCode}}</td><td>{{.ProductName}}</td><td>{{.OrderedQuantity}} {{.Unit}}</td><td>{{.ReceivedQuantity}} {{.Unit}}</td><td>{{.Reason}}</td></tr>
{{end}}</table>
<p>{{.Report.ModifiedLineCount}} righe con differenze su {{.Report.TotalLineCount}}.</p>{{end}}
{{if .Report.FreeTextNotes}}<p><em>Note:</em> {{.Report.FreeTextNotes}}</p>{{end}}`))

type renderContext struct {
	Invoice models.Invoice
	Report  models.DiscrepancyReport
}

// RenderBodies renders the same discrepancy data twice, once as HTML and
// once as plaintext, for notification channels that want either.
func RenderBodies(inv models.Invoice, report models.DiscrepancyReport) (html, text string) {
	var h strings.Builder
	if err := htmlBody.Execute(&h, renderContext{Invoice: inv, Report: report}); err == nil {
		html = h.String()
	}

	var t strings.Builder
	fmt.Fprintf(&t, "Segnalazione errori consegna\n")
	fmt.Fprintf(&t, "DDT %s - %s -> %s\n", inv.Numero, inv.Fornitore, inv.PuntoVendita)
	fmt.Fprintf(&t, "Segnalato da %s il %s\n", report.ReportingUser, report.DeliveryDate)
	for _, line := range report.LineDiscrepancies {
		fmt.Fprintf(&t, "- riga %d [%s] %s: ordinato %g %s, ricevuto %g %s",
			line.LineNumber, line.ProductCode, line.ProductName,
			line.OrderedQuantity, line.Unit, line.ReceivedQuantity, line.Unit)
		if line.Reason != "" {
			fmt.Fprintf(&t, " (%s)", line.Reason)
		}
		t.WriteByte('\n')
	}
	if len(report.LineDiscrepancies) > 0 {
		fmt.Fprintf(&t, "%d righe con differenze su %d\n", report.ModifiedLineCount, report.TotalLineCount)
	}
	if report.FreeTextNotes != "" {
		fmt.Fprintf(&t, "Note: %s\n", report.FreeTextNotes)
	}
	return html, t.String()
}

// BuildPayload assembles the dispatch payload for an invoice and its report.
func BuildPayload(inv models.Invoice, report models.DiscrepancyReport) Payload {
	html, text := RenderBodies(inv, report)
	return Payload{
		InvoiceID:     inv.ID,
		Numero:        inv.Numero,
		Fornitore:     inv.Fornitore,
		PuntoVendita:  inv.PuntoVendita,
		DeliveryDate:  report.DeliveryDate,
		ReportedBy:    report.ReportingUser,
		RawDDT:        inv.TestoDDT,
		Report:        report,
		HTMLBody:      html,
		PlaintextBody: text,
	}
}
