package server

import (
	"net/http"
	"strings"

	participationdomain "github.com/alimia7/achatons/internal/participation/domain"
	"github.com/gin-gonic/gin"
)

type submitParticipationRequest struct {
	UserID   string `json:"user_id"`
	Quantity int64  `json:"quantity"`
}

func (s *Server) SubmitParticipation(c *gin.Context) {
	var req submitParticipationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.participationSvc.Submit(c.Request.Context(), participationdomain.SubmitRequest{
		OfferID:  strings.TrimSpace(c.Param("id")),
		UserID:   req.UserID,
		Quantity: req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListParticipations(c *gin.Context) {
	var req participationdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OfferID = strings.TrimSpace(c.Param("id"))

	resp, err := s.participationSvc.ListByOffer(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Participations, "page_info": resp.PageInfo})
}

func (s *Server) ValidateParticipation(c *gin.Context) {
	resp, err := s.participationSvc.Validate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelParticipation(c *gin.Context) {
	resp, err := s.participationSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
