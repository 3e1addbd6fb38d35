package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	partnerdomain "github.com/voyara/voyara/internal/partner/domain"
)

type createPartnerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type setPartnerStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) CreatePartner(c *gin.Context) {
	var req createPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.partnerSvc.Create(c.Request.Context(), partnerdomain.CreateRequest{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPartner(c *gin.Context) {
	resp, err := s.partnerSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPartners(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		Limit  int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.partnerSvc.List(c.Request.Context(), partnerdomain.ListRequest{
		Status: partnerdomain.PartnerStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetPartnerStatus(c *gin.Context) {
	var req setPartnerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.partnerSvc.SetStatus(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		partnerdomain.PartnerStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
