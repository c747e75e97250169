package middleware

import (
	"net/http"
	"strings"
	"time"

	"stock-trader/internal/models"
	"stock-trader/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthMiddleware 校验 JWT 并回查服务端 session，再把当前用户放入 context。
// token 来源依次为 Authorization 头、?token= 查询参数、st_token cookie。
func AuthMiddleware(jwtSecret string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string

		// 1) Header: Authorization: Bearer xxx
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenStr = parts[1]
			}
		}

		// 2) URL 查询参数 ?token=xxx（用于下载等无法自定义 Header 的场景）
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}

		// 3) Cookie st_token
		if tokenStr == "" {
			if cookie, err := c.Cookie("st_token"); err == nil {
				tokenStr = cookie
			}
		}

		if tokenStr == "" {
			util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
			c.Abort()
			return
		}

		claims, err := util.ParseToken(jwtSecret, tokenStr)
		if err != nil || claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
			util.Apology(c, http.StatusForbidden, util.CodeAuth, "session expired, please log in again")
			c.Abort()
			return
		}

		// session 必须仍然有效（登出会将其撤销）
		var session models.Session
		if err := db.First(&session, "id = ?", claims.SessionID).Error; err != nil {
			util.Apology(c, http.StatusForbidden, util.CodeAuth, "session expired, please log in again")
			c.Abort()
			return
		}
		if session.Revoked || session.ExpiresAt.Before(time.Now()) || session.UserID != claims.UserID {
			util.Apology(c, http.StatusForbidden, util.CodeAuth, "session expired, please log in again")
			c.Abort()
			return
		}

		var user models.User
		if err := db.First(&user, session.UserID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				util.Apology(c, http.StatusForbidden, util.CodeAuth, "user not found")
			} else {
				util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load user")
			}
			c.Abort()
			return
		}

		c.Set("currentUser", &user)
		c.Set("sessionID", session.ID)
		c.Next()
	}
}
