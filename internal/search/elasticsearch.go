// Package search indexes confirmed invoices for the central admin's
// cross-store view. Indexing is best-effort: the spreadsheet row remains
// the source of truth and the index is reconstructable from it.
package search

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
)

// Config holds Elasticsearch configuration.
type Config struct {
	URL      string `mapstructure:"elastic.url"`
	Username string `mapstructure:"elastic.username"`
	Password string `mapstructure:"elastic.password"`
	Index    string `mapstructure:"elastic.index"`
}

// ElasticClient provides integration with Elasticsearch.
type ElasticClient struct {
	client *elasticsearch.Client
	config Config
}

// NewElasticClient creates a new Elasticsearch client.
func NewElasticClient(cfg Config) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{client: client, config: cfg}, nil
}

// IndexInvoice indexes one confirmed invoice, keyed by invoice id so
// re-confirmations and edits overwrite the previous document.
func (c *ElasticClient) IndexInvoice(ctx context.Context, inv models.Invoice, storeCode string) error {
	doc := map[string]interface{}{
		"id":            inv.ID,
		"numero":        inv.Numero,
		"fornitore":     inv.Fornitore,
		"punto_vendita": inv.PuntoVendita,
		"store_code":    storeCode,
		"stato":         inv.Stato,
		"data_consegna": inv.DataConsegna,
		"confermato_da": inv.ConfermatoDa,
		"has_errors":    inv.HasErrors(),
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal invoice document")
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: inv.ID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Debug().Str("invoice_id", inv.ID).Msg("invoice indexed")
	return nil
}

// SearchInvoices runs a raw query against the invoice index and returns the
// matching documents.
func (c *ElasticClient) SearchInvoices(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}
	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		docs = append(docs, source)
	}
	return docs, nil
}
