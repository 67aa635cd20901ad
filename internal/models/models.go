// Package models holds the typed DTOs for the spreadsheet-backed tables and
// the parse/validate boundary between string-valued sheet cells and business
// logic.
package models

import (
	"encoding/json"
	"strings"
)

// Invoice lifecycle states. Once consegnato, later edits are modifications;
// there is no transition back to pending.
const (
	StatusPending   = "pending"
	StatusDelivered = "consegnato"
)

// Column names of the Fatture sheet.
const (
	ColID               = "id"
	ColNumero           = "numero"
	ColFornitore        = "fornitore"
	ColDataEmissione    = "data_emissione"
	ColPuntoVendita     = "punto_vendita"
	ColCodiceFornitore  = "codice_fornitore"
	ColStato            = "stato"
	ColDataConsegna     = "data_consegna"
	ColConfermatoDa     = "confermato_da"
	ColTxt              = "txt"
	ColTestoDDT         = "testo_ddt"
	ColNote             = "note"
	ColItemNoConv       = "item_noconv"
	ColErroriConsegna   = "errori_consegna"
	ColStoricoModifiche = "storico_modifiche"
)

// Fields is the read side of a row, satisfied by rowstore.Row.
type Fields interface {
	Get(field string) string
}

// Invoice is one supplier delivery document, one row in the Fatture sheet.
type Invoice struct {
	ID               string
	Numero           string
	Fornitore        string
	DataEmissione    string
	PuntoVendita     string
	CodiceFornitore  string
	Stato            string
	DataConsegna     string
	ConfermatoDa     string
	Txt              string
	TestoDDT         string
	Note             string
	ItemNoConv       string
	ErroriConsegna   string
	StoricoModifiche string
}

// InvoiceFromRow reads the typed snapshot out of a string-valued row.
func InvoiceFromRow(r Fields) Invoice {
	return Invoice{
		ID:               r.Get(ColID),
		Numero:           r.Get(ColNumero),
		Fornitore:        r.Get(ColFornitore),
		DataEmissione:    r.Get(ColDataEmissione),
		PuntoVendita:     r.Get(ColPuntoVendita),
		CodiceFornitore:  r.Get(ColCodiceFornitore),
		Stato:            r.Get(ColStato),
		DataConsegna:     r.Get(ColDataConsegna),
		ConfermatoDa:     r.Get(ColConfermatoDa),
		Txt:              r.Get(ColTxt),
		TestoDDT:         r.Get(ColTestoDDT),
		Note:             r.Get(ColNote),
		ItemNoConv:       r.Get(ColItemNoConv),
		ErroriConsegna:   r.Get(ColErroriConsegna),
		StoricoModifiche: r.Get(ColStoricoModifiche),
	}
}

// Delivered reports whether the invoice has reached its terminal state.
func (i Invoice) Delivered() bool {
	return i.Stato == StatusDelivered
}

// ErrorState identifies which of the three error channels carries the
// invoice's error condition. Three schema generations coexist in the sheet,
// so all are checked; structured reports win over the legacy columns.
type ErrorState int

const (
	ErrorStateNone ErrorState = iota
	ErrorStateStructured
	ErrorStateLegacyNote
	ErrorStateLegacyConversion
)

// ResolveErrorState resolves the three channels by priority.
func (i Invoice) ResolveErrorState() ErrorState {
	switch {
	case strings.TrimSpace(i.ErroriConsegna) != "":
		return ErrorStateStructured
	case strings.TrimSpace(i.Note) != "":
		return ErrorStateLegacyNote
	case strings.TrimSpace(i.ItemNoConv) != "":
		return ErrorStateLegacyConversion
	default:
		return ErrorStateNone
	}
}

// HasErrors is the logical OR over the three error channels. It drives the
// _ERRORI filename suffix.
func (i Invoice) HasErrors() bool {
	return i.ResolveErrorState() != ErrorStateNone
}

// DiscrepancyReport is the structured record persisted in errori_consegna.
// A new submission overwrites the previous one.
type DiscrepancyReport struct {
	Timestamp         string            `json:"timestamp"`
	DeliveryDate      string            `json:"data_consegna"`
	ReportingUser     string            `json:"utente"`
	LineDiscrepancies []LineDiscrepancy `json:"righe"`
	FreeTextNotes     string            `json:"note"`
	ModifiedLineCount int               `json:"righe_modificate"`
	TotalLineCount    int               `json:"righe_totali"`
}

// LineDiscrepancy is one reported mismatch between a DDT line's ordered and
// received quantities.
type LineDiscrepancy struct {
	LineNumber       int     `json:"riga"`
	ProductCode      string  `json:"codice"`
	ProductName      string  `json:"prodotto"`
	Unit             string  `json:"unita"`
	OrderedQuantity  float64 `json:"qta_ordinata"`
	ReceivedQuantity float64 `json:"qta_ricevuta"`
	Reason           string  `json:"motivo"`
}

// Encode serializes the report for the errori_consegna column.
func (r DiscrepancyReport) Encode() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeDiscrepancyReport parses the errori_consegna column. Blank or
// malformed input yields ok=false.
func DecodeDiscrepancyReport(raw string) (DiscrepancyReport, bool) {
	if strings.TrimSpace(raw) == "" {
		return DiscrepancyReport{}, false
	}
	var r DiscrepancyReport
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return DiscrepancyReport{}, false
	}
	return r, true
}

// Column names of the Movimenti sheet.
const (
	ColMovID              = "id"
	ColMovData            = "data_movimento"
	ColMovTimestamp       = "timestamp"
	ColMovOrigine         = "punto_vendita_origine"
	ColMovCodiceOrigine   = "codice_origine"
	ColMovProdotto        = "prodotto"
	ColMovQuantita        = "quantita"
	ColMovUnita           = "unita"
	ColMovDestinazione    = "punto_vendita_destinazione"
	ColMovCodiceDest      = "codice_destinazione"
	ColMovStato           = "stato"
	ColMovContenutoTxt    = "contenuto_txt"
	ColMovNomeFileTxt     = "nome_file_txt"
	ColMovCreatoDa        = "creato_da"
	ColMovNumeroDocumento = "numero_documento"
)

// Movement is one stock-transfer line between stores. A batch sharing a
// transfer-document number produces exactly one synthetic invoice.
type Movement struct {
	ID                     string `json:"id"`
	MovementDate           string `json:"data_movimento"`
	Timestamp              string `json:"timestamp"`
	OriginStore            string `json:"punto_vendita_origine"`
	OriginCode             string `json:"codice_origine"`
	Product                string `json:"prodotto"`
	Quantity               string `json:"quantita"`
	Unit                   string `json:"unita"`
	DestinationStore       string `json:"punto_vendita_destinazione"`
	DestinationCode        string `json:"codice_destinazione"`
	Status                 string `json:"stato"`
	ArtifactContent        string `json:"contenuto_txt,omitempty"`
	ArtifactFilename       string `json:"nome_file_txt,omitempty"`
	CreatedBy              string `json:"creato_da"`
	TransferDocumentNumber string `json:"numero_documento"`
}

// MovementFromRow reads the typed snapshot out of a string-valued row.
func MovementFromRow(r Fields) Movement {
	return Movement{
		ID:                     r.Get(ColMovID),
		MovementDate:           r.Get(ColMovData),
		Timestamp:              r.Get(ColMovTimestamp),
		OriginStore:            r.Get(ColMovOrigine),
		OriginCode:             r.Get(ColMovCodiceOrigine),
		Product:                r.Get(ColMovProdotto),
		Quantity:               r.Get(ColMovQuantita),
		Unit:                   r.Get(ColMovUnita),
		DestinationStore:       r.Get(ColMovDestinazione),
		DestinationCode:        r.Get(ColMovCodiceDest),
		Status:                 r.Get(ColMovStato),
		ArtifactContent:        r.Get(ColMovContenutoTxt),
		ArtifactFilename:       r.Get(ColMovNomeFileTxt),
		CreatedBy:              r.Get(ColMovCreatoDa),
		TransferDocumentNumber: r.Get(ColMovNumeroDocumento),
	}
}

// ToRowObject renders the movement as the column map AppendRows expects.
func (m Movement) ToRowObject() map[string]string {
	return map[string]string{
		ColMovID:              m.ID,
		ColMovData:            m.MovementDate,
		ColMovTimestamp:       m.Timestamp,
		ColMovOrigine:         m.OriginStore,
		ColMovCodiceOrigine:   m.OriginCode,
		ColMovProdotto:        m.Product,
		ColMovQuantita:        m.Quantity,
		ColMovUnita:           m.Unit,
		ColMovDestinazione:    m.DestinationStore,
		ColMovCodiceDest:      m.DestinationCode,
		ColMovStato:           m.Status,
		ColMovContenutoTxt:    m.ArtifactContent,
		ColMovNomeFileTxt:     m.ArtifactFilename,
		ColMovCreatoDa:        m.CreatedBy,
		ColMovNumeroDocumento: m.TransferDocumentNumber,
	}
}

// Product is one catalog row.
type Product struct {
	Code string `json:"codice"`
	Name string `json:"nome"`
	Unit string `json:"unita"`
}

// Store is one physical location.
type Store struct {
	Name string `json:"nome"`
	Code string `json:"codice"`
}

// Operator roles.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Operator is one entry of the static account directory.
type Operator struct {
	Email string `json:"email"`
	Name  string `json:"nome"`
	Role  string `json:"ruolo"`
	Store string `json:"punto_vendita"`
	Token string `json:"token"`
}
