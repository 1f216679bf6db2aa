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

// CommentHandler coordinates comment-related HTTP handlers.
type CommentHandler struct {
	commentService *services.CommentService
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// ListComments returns a task's comments, oldest first.
func (h *CommentHandler) ListComments(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	comments, err := h.commentService.ListComments(taskID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "", dto.ToCommentDTOs(comments))
}

// CreateComment adds a comment to a task.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type CreateCommentRequest struct {
		Content string `json:"content" binding:"required"`
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), taskID, userID, req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusCreated, "Comment added", dto.ToCommentDTO(*comment))
}

// UpdateComment edits a comment.
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	commentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type UpdateCommentRequest struct {
		Content string `json:"content" binding:"required"`
	}

	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.commentService.UpdateComment(c.Request.Context(), commentID, userID, req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "Comment updated", dto.ToCommentDTO(*comment))
}

// DeleteComment deletes a comment.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	commentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.commentService.DeleteComment(c.Request.Context(), commentID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "Comment deleted", nil)
}
