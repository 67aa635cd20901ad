package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/search"
)

// Catalog serves the product and store lookups.
type Catalog interface {
	Products() []models.Product
}

// DirectoryHandler serves the static lookups and the admin search endpoint.
type DirectoryHandler struct {
	catalog Catalog
	elastic *search.ElasticClient
}

// NewDirectoryHandler creates a new directory handler. elastic may be nil.
func NewDirectoryHandler(catalog Catalog, elastic *search.ElasticClient) *DirectoryHandler {
	return &DirectoryHandler{catalog: catalog, elastic: elastic}
}

// Products serves the catalog snapshot.
func (h *DirectoryHandler) Products(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.catalog.Products()})
}

// SearchRequest is a raw Elasticsearch query body.
type SearchRequest struct {
	Query map[string]interface{} `json:"query" binding:"required"`
}

// Search runs an admin query against the invoice index.
func (h *DirectoryHandler) Search(c *gin.Context) {
	if h.elastic == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Search is not configured",
			Code:    "SERVICE_UNAVAILABLE",
		})
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, NewValidationError(err.Error()))
		return
	}

	docs, err := h.elastic.SearchInvoices(c.Request.Context(), map[string]interface{}{"query": req.Query})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": docs})
}
