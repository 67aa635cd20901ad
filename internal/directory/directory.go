// Package directory holds the read-only lookups for stores, operator
// accounts and the product catalog. All three live in the spreadsheet and
// change rarely; the package keeps an in-memory snapshot refreshed from the
// sheet (with a Redis fallback when the sheet is unreachable) and serves
// lookups without I/O.
package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/cache"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
)

const cacheTTL = 6 * time.Hour

// Directory serves the static lookups.
type Directory struct {
	store rowstore.Store
	cache *cache.RedisCache

	mu        sync.RWMutex
	stores    map[string]string // store name -> code
	operators []models.Operator
	products  []models.Product
}

// New creates an empty directory; call Refresh before serving lookups.
func New(store rowstore.Store, redis *cache.RedisCache) *Directory {
	return &Directory{
		store:  store,
		cache:  redis,
		stores: make(map[string]string),
	}
}

// Refresh reloads all three tables from the sheet, falling back to the
// cached snapshot for any table the sheet cannot serve. Fresh sheet data is
// written through to the cache best-effort.
func (d *Directory) Refresh(ctx context.Context) error {
	stores, storesErr := d.loadStores(ctx)
	operators, operatorsErr := d.loadOperators(ctx)
	products, productsErr := d.loadProducts(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	if storesErr == nil {
		d.stores = stores
	}
	if operatorsErr == nil {
		d.operators = operators
	}
	if productsErr == nil {
		d.products = products
	}

	for _, err := range []error{storesErr, operatorsErr, productsErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Directory) loadStores(ctx context.Context) (map[string]string, error) {
	rows, err := d.store.Rows(ctx, rowstore.TableStores)
	if err != nil {
		var cached []models.Store
		if cacheErr := d.cache.Get(ctx, cache.StoresCacheKey(), &cached); cacheErr == nil {
			log.Warn().Err(err).Msg("store directory read failed, serving cached snapshot")
			return storesByName(cached), nil
		}
		return nil, errors.Wrap(err, "failed to load store directory")
	}

	list := make([]models.Store, 0, len(rows))
	for _, row := range rows {
		s := models.Store{Name: row.Get("nome"), Code: row.Get("codice")}
		if s.Name == "" {
			continue
		}
		list = append(list, s)
	}
	if cacheErr := d.cache.Set(ctx, cache.StoresCacheKey(), list, cacheTTL); cacheErr != nil {
		log.Debug().Err(cacheErr).Msg("store directory cache write skipped")
	}
	return storesByName(list), nil
}

func storesByName(list []models.Store) map[string]string {
	byName := make(map[string]string, len(list))
	for _, s := range list {
		byName[s.Name] = s.Code
	}
	return byName
}

func (d *Directory) loadOperators(ctx context.Context) ([]models.Operator, error) {
	rows, err := d.store.Rows(ctx, rowstore.TableOperators)
	if err != nil {
		var cached []models.Operator
		if cacheErr := d.cache.Get(ctx, cache.OperatorsCacheKey(), &cached); cacheErr == nil {
			log.Warn().Err(err).Msg("operator directory read failed, serving cached snapshot")
			return cached, nil
		}
		return nil, errors.Wrap(err, "failed to load operator directory")
	}

	list := make([]models.Operator, 0, len(rows))
	for _, row := range rows {
		op := models.Operator{
			Email: strings.ToLower(strings.TrimSpace(row.Get("email"))),
			Name:  row.Get("nome"),
			Role:  row.Get("ruolo"),
			Store: row.Get("punto_vendita"),
			Token: row.Get("token"),
		}
		if op.Email == "" {
			continue
		}
		if op.Role != models.RoleAdmin {
			op.Role = models.RoleOperator
		}
		list = append(list, op)
	}
	if cacheErr := d.cache.Set(ctx, cache.OperatorsCacheKey(), list, cacheTTL); cacheErr != nil {
		log.Debug().Err(cacheErr).Msg("operator directory cache write skipped")
	}
	return list, nil
}

func (d *Directory) loadProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := d.store.Rows(ctx, rowstore.TableProducts)
	if err != nil {
		var cached []models.Product
		if cacheErr := d.cache.Get(ctx, cache.ProductsCacheKey(), &cached); cacheErr == nil {
			log.Warn().Err(err).Msg("product catalog read failed, serving cached snapshot")
			return cached, nil
		}
		return nil, errors.Wrap(err, "failed to load product catalog")
	}

	list := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		p := models.Product{Code: row.Get("codice"), Name: row.Get("nome"), Unit: row.Get("unita")}
		if p.Code == "" {
			continue
		}
		list = append(list, p)
	}
	if cacheErr := d.cache.Set(ctx, cache.ProductsCacheKey(), list, cacheTTL); cacheErr != nil {
		log.Debug().Err(cacheErr).Msg("product catalog cache write skipped")
	}
	return list, nil
}

// Code resolves a store name to its short code. Satisfies artifact.StoreCodes.
func (d *Directory) Code(storeName string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	code, ok := d.stores[storeName]
	return code, ok
}

// OperatorByToken resolves an API token to its operator account.
func (d *Directory) OperatorByToken(token string) (models.Operator, bool) {
	if token == "" {
		return models.Operator{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, op := range d.operators {
		if op.Token == token {
			return op, true
		}
	}
	return models.Operator{}, false
}

// OperatorByEmail resolves an email to its operator account.
func (d *Directory) OperatorByEmail(email string) (models.Operator, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, op := range d.operators {
		if op.Email == email {
			return op, true
		}
	}
	return models.Operator{}, false
}

// Products returns the catalog snapshot.
func (d *Directory) Products() []models.Product {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Product, len(d.products))
	copy(out, d.products)
	return out
}
