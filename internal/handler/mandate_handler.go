package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/mandate"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/response"
	"github.com/civica/membership-backend/internal/service"
	"github.com/civica/membership-backend/internal/validator"
)

// MandateHandler handles a member's role mandates and their notifications.
type MandateHandler struct {
	mandateService *service.MandateService
	log            zerolog.Logger
}

// NewMandateHandler creates a new MandateHandler.
func NewMandateHandler(mandateService *service.MandateService, log zerolog.Logger) *MandateHandler {
	return &MandateHandler{
		mandateService: mandateService,
		log:            log.With().Str("component", "mandate_handler").Logger(),
	}
}

// ListMandates godoc
// GET /api/v1/members/:id/mandates?search=&status=&from=&to=
// Lists a member's mandates ordered by start date, optionally filtered.
func (h *MandateHandler) ListMandates(c *gin.Context) {
	memberID, ok := paramID(c, "id")
	if !ok {
		return
	}

	q, fields := parseQuery(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQuery, fields)
		return
	}

	mandates, err := h.mandateService.Search(c.Request.Context(), memberID, q)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"mandates": mandates})
}

// GetMandate godoc
// GET /api/v1/members/:id/mandates/:mandate_id
func (h *MandateHandler) GetMandate(c *gin.Context) {
	memberID, ok := paramID(c, "id")
	if !ok {
		return
	}

	m, err := h.mandateService.Get(c.Request.Context(), memberID, c.Param("mandate_id"))
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"mandate": m})
}

// CreateMandate godoc
// POST /api/v1/members/:id/mandates
func (h *MandateHandler) CreateMandate(c *gin.Context) {
	memberID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.CreateMandateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	m, err := h.mandateService.Create(c.Request.Context(), memberID, req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}

	h.log.Info().
		Int("member_id", memberID).
		Str("mandate_id", m.ID).
		Str("role", string(m.Role)).
		Msg("Mandate created")

	response.Success(c, http.StatusCreated, gin.H{"mandate": m})
}

// UpdateMandate godoc
// PUT /api/v1/members/:id/mandates/:mandate_id
// Applies a partial update. Moving a mandate to ADMIN requires admins:write.
func (h *MandateHandler) UpdateMandate(c *gin.Context) {
	memberID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateMandateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.Role != nil && !canGrant(c, *req.Role) {
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		return
	}

	m, err := h.mandateService.Update(c.Request.Context(), memberID, c.Param("mandate_id"), req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"mandate": m})
}

// DeleteMandate godoc
// DELETE /api/v1/members/:id/mandates/:mandate_id
func (h *MandateHandler) DeleteMandate(c *gin.Context) {
	memberID, ok := paramID(c, "id")
	if !ok {
		return
	}

	mandateID := c.Param("mandate_id")
	if err := h.mandateService.Delete(c.Request.Context(), memberID, mandateID); err != nil {
		failFromService(c, h.log, err)
		return
	}

	h.log.Info().Int("member_id", memberID).Str("mandate_id", mandateID).Msg("Mandate deleted")
	c.Status(http.StatusNoContent)
}

// ListNotifications godoc
// GET /api/v1/members/:id/mandates/notifications?days=
// Returns overlap warnings and expiry notices for the member.
func (h *MandateHandler) ListNotifications(c *gin.Context) {
	memberID, ok := paramID(c, "id")
	if !ok {
		return
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQuery, map[string]string{
				"days": "days must be a non-negative integer",
			})
			return
		}
		days = n
	}

	notes, err := h.mandateService.Notifications(c.Request.Context(), memberID, days)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notifications": notes})
}

// parseQuery reads the list filter. A range needs both ends to constrain.
func parseQuery(c *gin.Context) (mandate.Query, map[string]string) {
	fields := map[string]string{}
	q := mandate.Query{Search: c.Query("search")}

	status, err := mandate.ParseStatus(c.Query("status"))
	if err != nil {
		fields["status"] = "status must be one of all, active, inactive"
	}
	q.Status = status

	var r mandate.DateRange
	for key, dst := range map[string]*model.Date{"from": &r.From, "to": &r.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		d, err := model.ParseDate(raw)
		if err != nil {
			fields[key] = key + " must be a date in YYYY-MM-DD format"
			continue
		}
		*dst = d
	}
	if !r.From.IsZero() || !r.To.IsZero() {
		q.DateRange = &r
	}

	if len(fields) > 0 {
		return q, fields
	}
	return q, nil
}
