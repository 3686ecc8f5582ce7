package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/vehicleguard/internal/notification/domain"
)

type notificationFunc func(ctx context.Context, companyID, id snowflake.ID) (notificationdomain.Notification, error)

type createNotificationRequest struct {
	notificationdomain.ScheduleRequest
	SendNow bool `json:"send_now"`
}

func (s *Server) ListNotifications(c *gin.Context) {
	var query notificationdomain.ListNotificationRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.Status = strings.TrimSpace(query.Status)
	query.EventType = strings.TrimSpace(query.EventType)
	query.ClientID = strings.TrimSpace(query.ClientID)
	query.PaymentID = strings.TrimSpace(query.PaymentID)

	resp, err := s.notificationSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Notifications, "page_info": resp.PageInfo})
}

// CreateNotification schedules a message, or sends it immediately when send_now is set.
func (s *Server) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventType = strings.TrimSpace(req.EventType)

	var (
		resp notificationdomain.Notification
		err  error
	)
	if req.SendNow {
		resp, err = s.notificationSvc.SendNow(c.Request.Context(), req.ScheduleRequest)
	} else {
		resp, err = s.notificationSvc.Schedule(c.Request.Context(), req.ScheduleRequest)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetNotification(c *gin.Context) {
	s.notificationAction(c, s.notificationSvc.Get)
}

func (s *Server) SendNotification(c *gin.Context) {
	s.notificationAction(c, s.notificationSvc.Dispatch)
}

func (s *Server) ResendNotification(c *gin.Context) {
	s.notificationAction(c, s.notificationSvc.Resend)
}

func (s *Server) SkipNotification(c *gin.Context) {
	s.notificationAction(c, s.notificationSvc.Skip)
}

func (s *Server) notificationAction(c *gin.Context, fn notificationFunc) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := fn(c.Request.Context(), companyIDFromContext(c.Request.Context()), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
