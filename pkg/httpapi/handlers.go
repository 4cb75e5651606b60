package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

func marshalAfter(v any) ([]byte, error) { return json.Marshal(v) }

func (s *Server) healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) readyzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// triggerRequest is the body of POST /protocols.
type triggerRequest struct {
	FileURI string `json:"file_uri" binding:"required"`
	Title   string `json:"title" binding:"required"`
}

// triggerHandler handles POST /protocols. Creates a Protocol in status
// uploaded and its protocol_uploaded outbox event atomically (spec.md §6.1),
// then returns immediately — extraction runs asynchronously once the
// dispatcher claims the event.
func (s *Server) triggerHandler(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.trigger.Trigger(c.Request.Context(), req.FileURI, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, TriggerResponse{ProtocolID: p.ID, Status: string(p.Status)})
}

// getProtocolHandler handles GET /protocols/:id. Opportunistically sweeps
// expired dead-letter outbox events first — the lazy half of the archival
// policy (DESIGN.md Open Question resolution #3): a protocol stuck pending
// its upload event forever is surfaced the moment someone looks at it,
// without waiting for pkg/cleanup's next hourly tick.
func (s *Server) getProtocolHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if s.sweeper != nil {
		if _, err := s.sweeper.SweepExpiredDeadLetters(ctx, s.cfg.DeadLetterTTL); err != nil {
			writeError(c, err)
			return
		}
	}

	p, err := s.protocols.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProtocolResponse(p))
}

// listCriteriaHandler handles GET /protocols/:id/criteria — the active
// batch's criteria rows (spec.md §3: "exactly one active batch per protocol").
func (s *Server) listCriteriaHandler(c *gin.Context) {
	ctx := c.Request.Context()
	protocolID := c.Param("id")

	batch, err := s.criteria.ActiveBatch(ctx, protocolID)
	if err != nil {
		writeError(c, err)
		return
	}

	rows, err := s.criteria.ListByBatch(ctx, batch.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]CriteriaResponse, len(rows))
	for i, r := range rows {
		resp[i] = newCriteriaResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batch.ID, "criteria": resp})
}

// listEntitiesHandler handles GET /criteria/:id/entities.
func (s *Server) listEntitiesHandler(c *gin.Context) {
	rows, err := s.criteria.ListEntitiesByCriteria(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]EntityResponse, len(rows))
	for i, e := range rows {
		resp[i] = newEntityResponse(e)
	}
	c.JSON(http.StatusOK, resp)
}

// submitReviewRequest is the body of POST /criteria/:id/reviews.
type submitReviewRequest struct {
	Action     string `json:"action" binding:"required"`      // approve, modify, reject
	ReviewerID string `json:"reviewer_id" binding:"required"`
	After      any    `json:"after,omitempty"`
}

// submitReviewHandler handles POST /criteria/:id/reviews — a human
// reviewer's approve/modify/reject decision on one Criteria row, recorded as
// an append-only Review and reflected onto the row's review_status.
func (s *Server) submitReviewHandler(c *gin.Context) {
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := domain.ReviewAction(req.Action)
	var status domain.ReviewStatus
	switch action {
	case domain.ReviewActionApprove:
		status = domain.ReviewStatusApproved
	case domain.ReviewActionModify:
		status = domain.ReviewStatusModified
	case domain.ReviewActionReject:
		status = domain.ReviewStatusRejected
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be one of approve, modify, reject"})
		return
	}

	var after []byte
	if req.After != nil {
		b, err := marshalAfter(req.After)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after payload"})
			return
		}
		after = b
	}

	rev, err := s.reviews.InsertReview(c.Request.Context(), domain.Review{
		CriteriaID: c.Param("id"),
		Action:     action,
		ReviewerID: req.ReviewerID,
		After:      after,
	}, &status)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newReviewResponse(rev))
}

// listReviewsHandler handles GET /criteria/:id/reviews.
func (s *Server) listReviewsHandler(c *gin.Context) {
	rows, err := s.reviews.ListByCriteria(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]ReviewResponse, len(rows))
	for i, r := range rows {
		resp[i] = newReviewResponse(r)
	}
	c.JSON(http.StatusOK, resp)
}

// listAuditLogsHandler handles GET /protocols/:id/audit-logs.
func (s *Server) listAuditLogsHandler(c *gin.Context) {
	rows, err := s.reviews.ListAuditLogsByProtocol(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]AuditLogResponse, len(rows))
	for i, a := range rows {
		resp[i] = newAuditLogResponse(a)
	}
	c.JSON(http.StatusOK, resp)
}
