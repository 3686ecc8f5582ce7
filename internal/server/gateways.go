package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
)

// InvokeGateway runs one create_charge, get_charge or cancel_charge envelope against the
// company's configured gateway account.
func (s *Server) InvokeGateway(c *gin.Context) {
	var env gatewaydomain.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	env.Action = strings.TrimSpace(env.Action)

	gateway := strings.ToLower(strings.TrimSpace(c.Param("gateway")))
	c.Set("gateway", gateway)

	resp, err := s.gatewaySvc.Invoke(c.Request.Context(), gateway, env)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
