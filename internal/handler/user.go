package handler

import (
	"net/http"

	"stock-trader/internal/models"
	"stock-trader/internal/util"

	"github.com/gin-gonic/gin"
)

// currentUser 从 context 取出 AuthMiddleware 放入的用户
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get("currentUser")
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// GetMe 返回当前登录用户信息（需要经过 AuthMiddleware）
func GetMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must log in")
		return
	}

	util.Success(c, util.Response{
		"user": gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"cash":       user.Cash.StringFixed(2),
			"created_at": user.CreatedAt,
		},
	})
}
