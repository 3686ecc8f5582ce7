package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
)

// ListAPIKeys returns key metadata for the caller's company. Hashes and raw
// keys never leave the service.
func (s *Server) ListAPIKeys(c *gin.Context) {
	keys, err := s.apiKeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": keys})
}

// CreateAPIKey answers with the raw vg_ key. It is shown this once.
func (s *Server) CreateAPIKey(c *gin.Context) {
	var req apikeydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	secret, err := s.apiKeySvc.Create(c.Request.Context(), apikeydomain.CreateRequest{
		Name: strings.TrimSpace(req.Name),
		Role: strings.ToLower(strings.TrimSpace(req.Role)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": secret})
}

// RotateAPIKey revokes :key_id and issues a replacement with the same name and role.
func (s *Server) RotateAPIKey(c *gin.Context) {
	secret, err := s.apiKeySvc.Rotate(c.Request.Context(), keyIDParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": secret})
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	if err := s.apiKeySvc.Revoke(c.Request.Context(), keyIDParam(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func keyIDParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("key_id"))
}
