package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/artifact"
)

// ArtifactHandler exposes the artifact directory for maintenance. All routes
// are admin-only: regular operators only reach artifacts through their
// invoices.
type ArtifactHandler struct {
	manager *artifact.Manager
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(manager *artifact.Manager) *ArtifactHandler {
	return &ArtifactHandler{manager: manager}
}

// ArtifactInfo is one entry of the artifact listing.
type ArtifactInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// List serves the live artifacts with their file metadata.
func (h *ArtifactHandler) List(c *gin.Context) {
	names, err := h.manager.List()
	if err != nil {
		RespondError(c, err)
		return
	}

	infos := make([]ArtifactInfo, 0, len(names))
	for _, name := range names {
		info := ArtifactInfo{Filename: name}
		if stat, err := h.manager.Stat(name); err == nil {
			info.Size = stat.Size
			info.Modified = stat.Modified.Format(time.RFC3339)
		}
		infos = append(infos, info)
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": infos})
}

// Read serves one artifact's raw content.
func (h *ArtifactHandler) Read(c *gin.Context) {
	name := c.Param("name")
	body, err := h.manager.ReadRaw(name)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": name, "body": string(body)})
}

// EditRequest is the new artifact content.
type EditRequest struct {
	Body string `json:"body" binding:"required"`
}

// Edit overwrites an artifact, backing up the previous content first.
func (h *ArtifactHandler) Edit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, NewValidationError(err.Error()))
		return
	}

	name := c.Param("name")
	if err := h.manager.Edit(name, []byte(req.Body)); err != nil {
		RespondError(c, err)
		return
	}

	log.Info().Str("filename", name).Str("operator", CurrentOperator(c).Email).Msg("Artifact edited")
	c.JSON(http.StatusOK, gin.H{"filename": name, "size": len(req.Body)})
}

// Delete removes an artifact after writing a recoverable backup.
func (h *ArtifactHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.manager.Delete(name); err != nil {
		RespondError(c, err)
		return
	}

	log.Info().Str("filename", name).Str("operator", CurrentOperator(c).Email).Msg("Artifact deleted")
	c.JSON(http.StatusOK, gin.H{"filename": name, "deleted": true})
}
