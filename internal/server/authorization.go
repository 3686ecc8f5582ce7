package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
)

func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeActionWithContext(c *gin.Context, object string, action string) error {
	keyID := strings.TrimSpace(c.GetString(contextAPIKeyIDKey))
	if keyID == "" {
		return ErrUnauthorized
	}
	companyID := companyIDFromContext(c.Request.Context())
	if companyID == 0 {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), fmt.Sprintf("api_key:%s", keyID), companyID.String(), strings.TrimSpace(object), strings.TrimSpace(action))
}

func companyIDFromContext(ctx context.Context) snowflake.ID {
	if ctx == nil {
		return 0
	}
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return 0
	}
	return companyID
}
