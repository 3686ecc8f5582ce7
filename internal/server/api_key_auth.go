package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
	auditcontext "github.com/smallbiznis/vehicleguard/internal/auditcontext"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	obscontext "github.com/smallbiznis/vehicleguard/internal/observability/context"
)

const (
	HeaderCompany = "X-Company-ID"

	contextAPIKeyIDKey = "api_key_id"
	contextRoleKey     = "api_key_role"
)

// APIKeyRequired authenticates requests using an API key only.
// Company identity is derived solely from the key; callers cannot pick a tenant.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestHasCompanyID(c) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || !apikeydomain.LooksLikeKey(raw) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if key == nil || key.CompanyID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		keyID := key.ID.String()
		ctx := c.Request.Context()
		ctx = companycontext.WithCompanyID(ctx, key.CompanyID)
		ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeAPIKey, keyID)
		ctx = obscontext.WithCompanyID(ctx, key.CompanyID.String())
		ctx = obscontext.WithActor(ctx, auditcontext.ActorTypeAPIKey, keyID)

		c.Set(contextAPIKeyIDKey, keyID)
		c.Set(contextRoleKey, string(key.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func requestHasCompanyID(c *gin.Context) bool {
	if strings.TrimSpace(c.GetHeader(HeaderCompany)) != "" {
		return true
	}
	if value, ok := c.GetQuery("company_id"); ok && strings.TrimSpace(value) != "" {
		return true
	}
	return false
}
