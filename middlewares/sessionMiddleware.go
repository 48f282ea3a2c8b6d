package middlewares

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionKey is the Redis key holding the RequestContext of a login token.
func SessionKey(token string) string {
	return "Session:" + token
}

// SessionMiddleware attaches the tenant of the request to its context. The
// session is looked up in Redis by the token header; requests without a
// token pass through untouched and are turned away by the handlers.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.DevHeaderSession() {
			if rc, ok := headerSession(c); ok {
				c.Request = c.Request.WithContext(appctx.WithRequestContext(c.Request.Context(), rc))
				c.Next()
				return
			}
		}

		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var rc appctx.RequestContext
		exists, err := config.GetRedisObject(SessionKey(token), &rc)
		if err != nil || !exists || rc.CompanyId == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = appctx.WithRequestContext(ctx, rc)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func headerSession(c *gin.Context) (appctx.RequestContext, bool) {
	companyId, err := strconv.Atoi(c.GetHeader("X-Company-Id"))
	if err != nil || companyId <= 0 {
		return appctx.RequestContext{}, false
	}
	fiscalYearId, _ := strconv.Atoi(c.GetHeader("X-Fiscal-Year-Id"))
	userId, _ := strconv.Atoi(c.GetHeader("X-User-Id"))
	return appctx.RequestContext{CompanyId: companyId, FiscalYearId: fiscalYearId, UserId: userId}, true
}
