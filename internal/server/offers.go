package server

import (
	"net/http"
	"strings"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateOffer(c *gin.Context) {
	var req offerdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.offerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListOffers(c *gin.Context) {
	var req offerdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.offerSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Offers, "page_info": resp.PageInfo})
}

// GetOffer returns the offer with its progress segments and nudge.
func (s *Server) GetOffer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.offerSvc.View(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type replaceTiersRequest struct {
	Tiers []pricetierdomain.TierInput `json:"tiers"`
}

func (s *Server) ReplaceOfferTiers(c *gin.Context) {
	var req replaceTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.priceTierSvc.ReplaceTiers(c.Request.Context(), pricetierdomain.ReplaceRequest{
		OfferID: strings.TrimSpace(c.Param("id")),
		Tiers:   req.Tiers,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecomputeOffer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.offerSvc.Recompute(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
