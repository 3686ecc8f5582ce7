package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

// ReceiveGatewayWebhook acknowledges every delivery. Gateways retry on non-2xx, so
// processing failures are recorded by the receiver instead of surfaced here.
func (s *Server) ReceiveGatewayWebhook(c *gin.Context) {
	gateway := strings.ToLower(strings.TrimSpace(c.Param("gateway")))
	c.Set("gateway", gateway)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		s.log.Warn("webhook body unreadable", zap.String("gateway", gateway), zap.Error(err))
	}

	results := s.webhookSvc.Receive(c.Request.Context(), gateway, gatewaydomain.Delivery{
		Body:    body,
		Headers: c.Request.Header.Clone(),
		Query:   c.Request.URL.Query(),
	})
	for _, item := range results {
		if item.Error == "" {
			continue
		}
		s.log.Info("webhook item not applied",
			zap.String("gateway", gateway),
			zap.String("delivery_id", item.DeliveryID),
			zap.String("outcome", string(item.Outcome)),
			zap.String("error", item.Error),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
