// Package public implements the unauthenticated signup intake endpoint. This
// is the only write the outside world can make against the control plane, so
// everything that arrives here is treated as hostile until validated.
package public

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/staybase/staybase-backend/internal/audit"
	"github.com/staybase/staybase-backend/internal/db/models"
	"github.com/staybase/staybase-backend/internal/db/repositories"
	"github.com/staybase/staybase-backend/internal/middleware"
	"github.com/staybase/staybase-backend/internal/validation"
)

// SignupHandlers serves the public signup intake.
type SignupHandlers struct {
	repo     *repositories.SignupRequestRepository
	recorder *audit.Recorder
}

// NewSignupHandlers creates the public signup handlers.
func NewSignupHandlers(db *sql.DB, recorder *audit.Recorder) *SignupHandlers {
	sqlxDB := sqlx.NewDb(db, "postgres")
	return &SignupHandlers{
		repo:     repositories.NewSignupRequestRepository(sqlxDB),
		recorder: recorder,
	}
}

type submitRequest struct {
	CompanyName       string   `json:"company_name"`
	ContactName       string   `json:"contact_name"`
	Email             string   `json:"email"`
	Country           string   `json:"country"`
	PropertyCount     int      `json:"property_count"`
	RequestedFeatures []string `json:"requested_features"`
}

// @Summary      Submit a signup request
// @Description  Accepts a prospective customer's signup submission for admin review. The request starts in the pending state; nothing is provisioned until an admin approves it.
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        request  body  submitRequest  true  "Signup details"
// @Success      201  {object}  map[string]interface{}  "id, status: pending"
// @Failure      400  {object}  map[string]string       "error: validation failure"
// @Failure      500  {object}  map[string]string       "error: Failed to submit signup request, error_id: request ID for support"
// @Router       /signup-requests [post]
func (h *SignupHandlers) Submit(c *gin.Context) {
	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := validation.ValidateSignup(
		body.CompanyName, body.ContactName, body.Email,
		body.PropertyCount, body.RequestedFeatures,
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := &models.SignupRequest{
		CompanyName:       body.CompanyName,
		ContactName:       body.ContactName,
		Email:             body.Email,
		Country:           body.Country,
		PropertyCount:     body.PropertyCount,
		RequestedFeatures: body.RequestedFeatures,
	}

	if err := h.repo.Create(c.Request.Context(), req); err != nil {
		// The caller gets a generic message plus the request ID; the ID is the
		// only handle support has to find the logged cause.
		errorID := c.GetString(middleware.RequestIDKey)
		slog.Error("signup request insert failed", "error_id", errorID, "email", body.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "Failed to submit signup request",
			"error_id": errorID,
		})
		return
	}

	// Best effort; the submission itself already succeeded.
	if err := h.recorder.Record(c.Request.Context(), audit.Event{
		Action:      "signup.submitted",
		PerformedBy: body.Email,
		Details: map[string]interface{}{
			"signup_request_id": req.ID,
			"company_name":      body.CompanyName,
			"property_count":    body.PropertyCount,
		},
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}); err != nil {
		slog.Warn("signup audit record failed", "signup_request_id", req.ID, "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     req.ID,
		"status": req.Status,
	})
}
