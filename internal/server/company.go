package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
)

func (s *Server) GetCompany(c *gin.Context) {
	company, err := s.companySvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	checkoutBase, err := s.companySvc.CheckoutBaseURL(c.Request.Context(), company.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": company, "checkout_base_url": checkoutBase})
}

func (s *Server) UpdateCompany(c *gin.Context) {
	var req companydomain.UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.companySvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "company.update", "company", resp.ID.String(), map[string]any{
		"name":            resp.Name,
		"custom_domain":   resp.CustomDomain,
		"default_gateway": resp.DefaultGateway,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
