package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/services"
)

// MovementHandler handles stock-transfer HTTP requests.
type MovementHandler struct {
	movements *services.MovementService
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(movements *services.MovementService) *MovementHandler {
	return &MovementHandler{movements: movements}
}

// CreateMovementsRequest is one transfer batch.
type CreateMovementsRequest struct {
	TransferDocumentNumber string                  `json:"numero_documento" binding:"required"`
	MovementDate           string                  `json:"data_movimento"`
	DestinationStore       string                  `json:"punto_vendita_destinazione" binding:"required"`
	Lines                  []services.MovementLine `json:"righe" binding:"required,min=1,dive"`
}

// Create records a transfer batch. The origin store is the caller's own.
func (h *MovementHandler) Create(c *gin.Context) {
	var req CreateMovementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, NewValidationError(err.Error()))
		return
	}

	operator := CurrentOperator(c)
	res, err := h.movements.Create(c.Request.Context(), services.CreateMovementsInput{
		TransferDocumentNumber: req.TransferDocumentNumber,
		MovementDate:           req.MovementDate,
		OriginStore:            operator.Store,
		DestinationStore:       req.DestinationStore,
		Lines:                  req.Lines,
		CreatedBy:              operator.Email,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// List serves the caller's movements; admins may filter any store.
func (h *MovementHandler) List(c *gin.Context) {
	operator := CurrentOperator(c)

	store := c.Query("punto_vendita")
	if operator.Role != models.RoleAdmin {
		store = operator.Store
	}

	movements, err := h.movements.List(c.Request.Context(), store)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}
