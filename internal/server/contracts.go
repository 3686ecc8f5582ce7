package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contractdomain "github.com/smallbiznis/vehicleguard/internal/contract/domain"
)

func (s *Server) CreateContract(c *gin.Context) {
	var req contractdomain.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contractSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "contract.create", "contract", resp.ID.String(), map[string]any{
		"client_id":     resp.ClientID.String(),
		"monthly_value": resp.MonthlyValue,
		"start_date":    resp.StartDate.Format(dateOnlyLayout),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContracts(c *gin.Context) {
	var query contractdomain.ListContractRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.Status = strings.TrimSpace(query.Status)
	query.ClientID = strings.TrimSpace(query.ClientID)

	resp, err := s.contractSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Contracts, "page_info": resp.PageInfo})
}

func (s *Server) GetContractByID(c *gin.Context) {
	resp, err := s.contractSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateContract(c *gin.Context) {
	var req contractdomain.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contractSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "contract.update", "contract", resp.ID.String(), map[string]any{
		"status":        string(resp.Status),
		"monthly_value": resp.MonthlyValue,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
