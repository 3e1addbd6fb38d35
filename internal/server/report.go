package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) AgingReport(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of timestamp"))
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	resp, err := s.reportSvc.AgingReport(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevenueReport(c *gin.Context) {
	periodStart, periodEnd, err := parsePeriod(c.Query("period_start"), c.Query("period_end"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reportSvc.RevenueReport(c.Request.Context(), periodStart, periodEnd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
