package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
)

type disputeCommissionRequest struct {
	Reason string `json:"reason"`
}

type approveCommissionRequest struct {
	Approver string `json:"approver"`
}

func (s *Server) CreateCommissionStructure(c *gin.Context) {
	var req commissiondomain.CreateStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PartnerID = strings.TrimSpace(c.Param("id"))

	resp, err := s.commissionSvc.CreateStructure(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveCommissionStructure(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of timestamp"))
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	resp, err := s.commissionSvc.ResolveStructure(c.Request.Context(), strings.TrimSpace(c.Param("id")), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CalculateCommission(c *gin.Context) {
	var booking commissiondomain.Booking
	if err := c.ShouldBindJSON(&booking); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commissionSvc.Calculate(c.Request.Context(), booking)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveCommission(c *gin.Context) {
	var req approveCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	approver := strings.TrimSpace(req.Approver)
	if approver == "" {
		AbortWithError(c, newValidationError("approver", "invalid_approver", "approver is required"))
		return
	}

	resp, err := s.commissionSvc.Approve(c.Request.Context(), strings.TrimSpace(c.Param("id")), approver)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DisputeCommission(c *gin.Context) {
	var req disputeCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.commissionSvc.Dispute(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Reason)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "disputed"})
}

func (s *Server) CancelCommission(c *gin.Context) {
	if err := s.commissionSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) SummarizeCommissions(c *gin.Context) {
	periodStart, periodEnd, err := parsePeriod(c.Query("period_start"), c.Query("period_end"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commissionSvc.Summarize(c.Request.Context(), strings.TrimSpace(c.Param("id")), periodStart, periodEnd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
