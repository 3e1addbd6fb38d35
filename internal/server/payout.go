package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
)

func (s *Server) ProcessPayoutBatch(c *gin.Context) {
	var req payoutdomain.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.ProcessBatch(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBatchPayments(c *gin.Context) {
	batchID := strings.TrimSpace(c.Param("id"))
	if batchID == "" {
		AbortWithError(c, newValidationError("id", "invalid_batch_id", "batch id is required"))
		return
	}

	resp, err := s.payoutSvc.ListPayments(c.Request.Context(), batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
