package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
)

const streamHeartbeatInterval = 15 * time.Second

// StreamPaymentEvents pushes the caller's payment events as server-sent events.
func (s *Server) StreamPaymentEvents(c *gin.Context) {
	if s.paymentEvents == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	companyID := companyIDFromContext(c.Request.Context())
	if companyID == 0 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	subscription, backlog, err := s.paymentEvents.Subscribe(companyID)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}

	for _, msg := range backlog {
		if err := writePaymentEvent(writer, msg); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-subscription.Events():
			if !ok {
				return
			}
			if err := writePaymentEvent(writer, msg); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writePaymentEvent(w io.Writer, msg eventdomain.Message) error {
	return sse.Encode(w, sse.Event{Id: msg.ID, Event: msg.Type, Data: msg})
}
