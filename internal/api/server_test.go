package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fradiavoloinvoice/fradiavolo-backend/config"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/artifact"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/ddt"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/metrics"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/services"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/tracing"
)

type testDirectory struct {
	operators map[string]models.Operator
	codes     map[string]string
	products  []models.Product
}

func (d *testDirectory) OperatorByToken(token string) (models.Operator, bool) {
	op, ok := d.operators[token]
	return op, ok
}

func (d *testDirectory) Products() []models.Product { return d.products }

func (d *testDirectory) Code(name string) (string, bool) {
	code, ok := d.codes[name]
	return code, ok
}

type apiFixture struct {
	router *gin.Engine
	store  *rowstore.MemoryStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := &testDirectory{
		operators: map[string]models.Operator{
			"tok-operator": {Email: "mario@fradiavolo.it", Role: models.RoleOperator, Store: "Fra Diavolo Centro", Token: "tok-operator"},
			"tok-admin":    {Email: "admin@fradiavolo.it", Role: models.RoleAdmin, Token: "tok-admin"},
		},
		codes:    map[string]string{"Fra Diavolo Centro": "FDC"},
		products: []models.Product{{Code: "FAR001", Name: "Farina 00", Unit: "KG"}},
	}

	localDir, err := artifact.NewLocalDirectory(t.TempDir())
	require.NoError(t, err)
	artifacts := artifact.NewManager(localDir, dir)

	store := rowstore.NewMemoryStore()
	tracer, err := tracing.NewTracer(tracing.Config{})
	require.NoError(t, err)
	collector := metrics.NewMetrics()

	invoices := services.NewInvoiceService(store, artifacts, nil, nil, dir, ddt.Parser{}, collector)
	movements := services.NewMovementService(store, dir)

	server := NewServer(config.Config{Environment: "test"}, Deps{
		Invoices:  invoices,
		Movements: movements,
		Artifacts: artifacts,
		Directory: dir,
		Metrics:   collector,
		Tracer:    tracer,
	})

	return &apiFixture{router: server.router, store: store}
}

func (f *apiFixture) seedInvoice(t *testing.T, id, store string) {
	t.Helper()
	require.NoError(t, f.store.AddRow(context.Background(), rowstore.TableInvoices, map[string]string{
		models.ColID:           id,
		models.ColNumero:       "DDT-" + id,
		models.ColFornitore:    "Molino Rossi",
		models.ColPuntoVendita: store,
		models.ColStato:        models.StatusPending,
		models.ColTxt:          "FAR001 | Farina 00 | KG | 25",
		models.ColTestoDDT:     "FAR001 | Farina 00 | KG | 25",
	}))
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(data)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Api-Token", token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsMissingAndUnknownTokens(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/invoices", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/invoices", "tok-unknown", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRejectOperators(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/dashboard", "tok-operator", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/dashboard", "tok-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListScopesOperatorsToTheirStore(t *testing.T) {
	f := newAPIFixture(t)
	f.seedInvoice(t, "inv-1", "Fra Diavolo Centro")
	f.seedInvoice(t, "inv-2", "Fra Diavolo Navigli")

	rec := f.do(t, http.MethodGet, "/api/invoices", "tok-operator", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Invoices []InvoiceView `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Invoices, 1)
	require.Equal(t, "inv-1", resp.Invoices[0].ID)

	rec = f.do(t, http.MethodGet, "/api/invoices", "tok-admin", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Invoices, 2)
}

func TestConfirmEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedInvoice(t, "inv-1", "Fra Diavolo Centro")

	rec := f.do(t, http.MethodPost, "/api/invoices/inv-1/confirm", "tok-operator", gin.H{
		"data_consegna": "2024-03-14",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Invoice InvoiceView `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, models.StatusDelivered, resp.Invoice.Stato)
	require.Equal(t, "mario@fradiavolo.it", resp.Invoice.ConfermatoDa)
}

func TestConfirmValidationMapsTo400(t *testing.T) {
	f := newAPIFixture(t)
	f.seedInvoice(t, "inv-1", "Fra Diavolo Centro")

	rec := f.do(t, http.MethodPost, "/api/invoices/inv-1/confirm", "tok-operator", gin.H{
		"data_consegna": "31-02-2024",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestConfirmForeignStoreIsForbidden(t *testing.T) {
	f := newAPIFixture(t)
	f.seedInvoice(t, "inv-2", "Fra Diavolo Navigli")

	rec := f.do(t, http.MethodPost, "/api/invoices/inv-2/confirm", "tok-operator", gin.H{
		"data_consegna": "2024-03-14",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownInvoiceMapsTo404(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/invoices/missing", "tok-operator", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportErrorEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedInvoice(t, "inv-1", "Fra Diavolo Centro")

	rec := f.do(t, http.MethodPost, "/api/invoices/inv-1/errors", "tok-operator", gin.H{
		"data_consegna": "2024-03-14",
		"note":          "un collo danneggiato",
		"righe": []gin.H{
			{
				"riga":         1,
				"codice":       "FAR001",
				"prodotto":     "Farina 00",
				"unita":        "KG",
				"qta_ordinata": 25,
				"qta_ricevuta": 20,
				"motivo":       "collo mancante",
				"modificata":   true,
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Invoice InvoiceView `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Invoice.HasErrors)
	require.Equal(t, models.StatusDelivered, resp.Invoice.Stato)
}

func TestMovementEndpointCreatesInvoice(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/movements", "tok-operator", gin.H{
		"numero_documento":           "TRF-100",
		"data_movimento":             "2024-03-14",
		"punto_vendita_destinazione": "Fra Diavolo Navigli",
		"righe": []gin.H{
			{"prodotto": "Farina 00", "quantita": 25, "unita": "KG"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp services.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.InvoiceCreated)
	require.Len(t, resp.Movements, 1)
	require.Equal(t, "Fra Diavolo Centro", resp.Movements[0].OriginStore)
}

func TestProductsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products", "tok-operator", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Products, 1)
	require.Equal(t, "FAR001", resp.Products[0].Code)
}

func TestArtifactAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedInvoice(t, "inv-1", "Fra Diavolo Centro")

	rec := f.do(t, http.MethodPost, "/api/invoices/inv-1/confirm", "tok-operator", gin.H{
		"data_consegna": "2024-03-14",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/artifacts", "tok-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Artifacts []ArtifactInfo `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Artifacts, 1)
	require.NotZero(t, listResp.Artifacts[0].Size)

	name := listResp.Artifacts[0].Filename
	rec = f.do(t, http.MethodPut, "/api/artifacts/"+name, "tok-admin", gin.H{"body": "contenuto corretto"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/artifacts/"+name, "tok-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var readResp struct {
		Body string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &readResp))
	require.Equal(t, "contenuto corretto", readResp.Body)

	rec = f.do(t, http.MethodDelete, "/api/artifacts/"+name, "tok-admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/artifacts/"+name, "tok-admin", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetricsAreUnauthenticated(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
