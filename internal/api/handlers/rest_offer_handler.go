package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mastAk7/finvest/internal/api/middleware"
	"github.com/mastAk7/finvest/internal/models"
	"github.com/mastAk7/finvest/internal/ranking"
	"github.com/mastAk7/finvest/internal/services"
	"github.com/mastAk7/finvest/internal/tasks"
)

// RestOfferHandler handles REST requests for investment offers.
type RestOfferHandler struct {
	offerService services.IOfferService
	taskClient   IAsynqClient
}

// NewRestOfferHandler creates a new RestOfferHandler.
func NewRestOfferHandler(offerService services.IOfferService, taskClient IAsynqClient) *RestOfferHandler {
	return &RestOfferHandler{
		offerService: offerService,
		taskClient:   taskClient,
	}
}

// SubmitOfferRequest is the payload for POST /v1/pitch/:id/offer.
// interest_annual_pct is a pointer so an omitted field is distinguishable
// from a legitimate 0% offer.
type SubmitOfferRequest struct {
	Principal         float64  `json:"principal" binding:"required,gt=0"`
	InterestAnnualPct *float64 `json:"interest_annual_pct" binding:"required,min=0,max=100"`
	TenureMonths      int      `json:"tenure_months" binding:"required,gt=0"`
}

// SubmitOffer handles POST /v1/pitch/:id/offer (investor only).
// Submitting again on the same pitch replaces the investor's previous offer.
func (h *RestOfferHandler) SubmitOffer(c *gin.Context) {
	var req SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	investorID := c.GetString(middleware.ContextKeyUserID)
	terms := models.OfferTerms{
		Principal:         req.Principal,
		InterestAnnualPct: *req.InterestAnnualPct,
		TenureMonths:      req.TenureMonths,
	}

	offer, err := h.offerService.SubmitOffer(c.Request.Context(), c.Param("id"), investorID, terms)
	if err != nil {
		respondError(c, err, "Failed to submit offer")
		return
	}

	c.JSON(http.StatusCreated, offer)
}

// ListOffers handles GET /v1/pitch/:id/offers
// Offers come back ranked best first. Optional w_principal and w_interest
// query parameters override the default ranking weights for this request.
func (h *RestOfferHandler) ListOffers(c *gin.Context) {
	role, _ := c.Get(middleware.ContextKeyUserRole)
	viewerRole, _ := role.(models.UserRole)

	weights, err := parseWeightOverrides(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offers, err := h.offerService.ListOffers(c.Request.Context(), c.Param("id"), viewerRole, weights)
	if err != nil {
		respondError(c, err, "Failed to list offers")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": offers})
}

// parseWeightOverrides reads optional ranking weight query parameters.
// Both must be supplied together or not at all.
func parseWeightOverrides(c *gin.Context) (*ranking.Weights, error) {
	pStr := c.Query("w_principal")
	iStr := c.Query("w_interest")
	if pStr == "" && iStr == "" {
		return nil, nil
	}
	if pStr == "" || iStr == "" {
		return nil, errInvalidWeights
	}
	p, err := strconv.ParseFloat(pStr, 64)
	if err != nil {
		return nil, errInvalidWeights
	}
	i, err := strconv.ParseFloat(iStr, 64)
	if err != nil {
		return nil, errInvalidWeights
	}
	return &ranking.Weights{Principal: p, Interest: i}, nil
}

var errInvalidWeights = errors.New("w_principal and w_interest must both be valid numbers when supplied")

// FinalizeOffer handles POST /v1/offer/:id/finalize (investor only).
func (h *RestOfferHandler) FinalizeOffer(c *gin.Context) {
	actingUserID := c.GetString(middleware.ContextKeyUserID)

	offer, pitch, err := h.offerService.FinalizeOffer(c.Request.Context(), c.Param("id"), actingUserID)
	if err != nil {
		respondError(c, err, "Failed to finalize offer")
		return
	}

	task, err := tasks.NewOfferFinalizedTask(offer.ID, pitch.ID)
	if err != nil {
		log.Printf("ERROR: failed to build finalized notification task for offer %s: %v", offer.ID, err)
	} else if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqueueErr != nil {
		log.Printf("ERROR: failed to enqueue finalized notification for offer %s: %v", offer.ID, enqueueErr)
	}

	c.JSON(http.StatusOK, gin.H{
		"offer": offer,
		"pitch": pitch,
	})
}

// AcceptOffer handles POST /v1/offer/:id/accept (borrower only).
func (h *RestOfferHandler) AcceptOffer(c *gin.Context) {
	actingUserID := c.GetString(middleware.ContextKeyUserID)

	offer, pitch, err := h.offerService.AcceptOffer(c.Request.Context(), c.Param("id"), actingUserID)
	if err != nil {
		respondError(c, err, "Failed to accept offer")
		return
	}

	task, err := tasks.NewOfferAcceptedTask(offer.ID, pitch.ID)
	if err != nil {
		log.Printf("ERROR: failed to build accepted notification task for offer %s: %v", offer.ID, err)
	} else if _, enqueueErr := h.taskClient.EnqueueContext(c.Request.Context(), task); enqueueErr != nil {
		log.Printf("ERROR: failed to enqueue accepted notification for offer %s: %v", offer.ID, enqueueErr)
	}

	c.JSON(http.StatusOK, gin.H{
		"offer": offer,
		"pitch": pitch,
	})
}
