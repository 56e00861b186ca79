package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/causeway/donors_backend/config"
	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the token header against redis and attaches the
// operator to the request context. Requests without a token pass through;
// handlers that need an operator check for one themselves.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		session, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		// session value is "<operatorId>:<operatorName>"
		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		if id, name, ok := splitSession(session); ok {
			ctx = utils.SetOperatorIdInContext(ctx, id)
			ctx = utils.SetOperatorNameInContext(ctx, name)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func splitSession(session string) (int, string, bool) {
	parts := strings.SplitN(session, ":", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	return id, parts[1], true
}
