package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devsync-app/devsync/internal/dto"
	apierrors "github.com/devsync-app/devsync/internal/errors"
	"github.com/devsync-app/devsync/internal/middleware"
	"github.com/devsync-app/devsync/internal/services"
	"github.com/devsync-app/devsync/internal/utils"
)

// LabelHandler coordinates label-related HTTP handlers.
type LabelHandler struct {
	labelService *services.LabelService
}

// NewLabelHandler creates a new LabelHandler.
func NewLabelHandler(labelService *services.LabelService) *LabelHandler {
	return &LabelHandler{
		labelService: labelService,
	}
}

// ListLabels returns a project's labels.
func (h *LabelHandler) ListLabels(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	labels, err := h.labelService.ListLabels(projectID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "", dto.ToLabelDTOs(labels))
}

// CreateLabel creates a label in a project.
func (h *LabelHandler) CreateLabel(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type CreateLabelRequest struct {
		Name  string `json:"name" binding:"required,min=1,max=100"`
		Color string `json:"color" binding:"required"`
	}

	var req CreateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	label, err := h.labelService.CreateLabel(c.Request.Context(), services.CreateLabelInput{
		ProjectID: projectID,
		ActorID:   userID,
		Name:      req.Name,
		Color:     req.Color,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusCreated, "Label created", dto.ToLabelDTO(*label))
}

// DeleteLabel deletes a label.
func (h *LabelHandler) DeleteLabel(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	labelID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.labelService.DeleteLabel(c.Request.Context(), labelID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "Label deleted", nil)
}
