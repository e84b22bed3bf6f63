package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/mastAk7/finvest/internal/api/middleware"
	"github.com/mastAk7/finvest/internal/services"
	"github.com/mastAk7/finvest/internal/tasks"
)

// IAsynqClient defines the interface for the Asynq client methods used by the
// handlers. This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RestPitchHandler handles REST requests for loan pitches.
type RestPitchHandler struct {
	pitchService services.IPitchService
	taskClient   IAsynqClient
}

// NewRestPitchHandler creates a new RestPitchHandler.
func NewRestPitchHandler(pitchService services.IPitchService, taskClient IAsynqClient) *RestPitchHandler {
	return &RestPitchHandler{
		pitchService: pitchService,
		taskClient:   taskClient,
	}
}

// CreatePitchRequest is the payload for POST /v1/pitch.
type CreatePitchRequest struct {
	OriginalRequest string `json:"original_request" binding:"required,notblank"`
}

// CreatePitch handles POST /v1/pitch (borrower only).
func (h *RestPitchHandler) CreatePitch(c *gin.Context) {
	var req CreatePitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	borrowerID := c.GetString(middleware.ContextKeyUserID)
	pitch, err := h.pitchService.CreatePitch(c.Request.Context(), borrowerID, req.OriginalRequest)
	if err != nil {
		respondError(c, err, "Failed to create pitch")
		return
	}

	// The pitch text is generated in the background; the pitch is returned
	// immediately with generated_pitch still empty.
	task, err := tasks.NewPitchGenerateTask(pitch.ID)
	if err != nil {
		log.Printf("ERROR: failed to build generate task for pitch %s: %v", pitch.ID, err)
	} else if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqueueErr != nil {
		log.Printf("ERROR: failed to enqueue generate task for pitch %s: %v", pitch.ID, enqueueErr)
	}

	c.JSON(http.StatusCreated, pitch)
}

// GetPitchByID handles GET /v1/pitch/:id
func (h *RestPitchHandler) GetPitchByID(c *gin.Context) {
	pitch, err := h.pitchService.FindPitchByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve pitch")
		return
	}
	c.JSON(http.StatusOK, pitch)
}

// ListPitches handles GET /v1/pitch
// With ?mine=true it returns the caller's own pitches; otherwise it returns
// open pitches investors can bid on.
func (h *RestPitchHandler) ListPitches(c *gin.Context) {
	if mine := c.Query("mine"); mine == "true" || mine == "1" {
		userID := c.GetString(middleware.ContextKeyUserID)
		pitches, err := h.pitchService.ListPitchesByBorrower(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err, "Failed to list pitches")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": pitches})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	pitches, err := h.pitchService.ListOpenPitches(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "Failed to list pitches")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pitches})
}
