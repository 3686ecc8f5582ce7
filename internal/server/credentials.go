package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
)

type upsertCredentialRequest struct {
	Config map[string]any `json:"config"`
}

type credentialStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// ListCredentials returns masked credentials; secrets never leave the service.
func (s *Server) ListCredentials(c *gin.Context) {
	resp, err := s.credentialSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCredential(c *gin.Context) {
	resp, err := s.credentialSvc.Get(c.Request.Context(), providerParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertCredential(c *gin.Context) {
	var req upsertCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.credentialSvc.Upsert(c.Request.Context(), credentialdomain.UpsertRequest{
		Provider: providerParam(c),
		Config:   req.Config,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetCredentialActive(c *gin.Context) {
	var req credentialStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		AbortWithError(c, newValidationError("is_active", "required", "is_active is required"))
		return
	}

	resp, err := s.credentialSvc.SetActive(c.Request.Context(), providerParam(c), *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteCredential(c *gin.Context) {
	if err := s.credentialSvc.Delete(c.Request.Context(), providerParam(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func providerParam(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("provider")))
}
