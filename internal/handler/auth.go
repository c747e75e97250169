package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"stock-trader/internal/models"
	"stock-trader/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errUsernameTaken = errors.New("username already exists")

// AuthHandler 负责注册/登录/登出相关接口
type AuthHandler struct {
	DB           *gorm.DB
	JWTSecret    string
	TokenTTL     time.Duration
	StartingCash decimal.Decimal
}

// NewAuthHandler 构造函数
func NewAuthHandler(db *gorm.DB, jwtSecret string, ttlHours int, startingCash decimal.Decimal) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &AuthHandler{
		DB:           db,
		JWTSecret:    jwtSecret,
		TokenTTL:     time.Duration(ttlHours) * time.Hour,
		StartingCash: startingCash,
	}
}

// ---------- 注册 ----------

type registerReq struct {
	Username     string `form:"username" json:"username"`
	Password     string `form:"password" json:"password"`
	Confirmation string `form:"confirmation" json:"confirmation"`
}

// Register creates the account and grants the starting cash balance.
// A successful registration does not log the user in; the client goes
// through /login afterwards.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBind(&req); err != nil {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid form")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	if req.Username == "" {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "must provide username")
		return
	}
	if req.Password == "" {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "must provide password")
		return
	}
	if req.Confirmation == "" {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "must confirm password")
		return
	}
	if req.Password != req.Confirmation {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "passwords do not match")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Cash:         h.StartingCash,
	}

	// 不区分大小写唯一：检查 + 插入放在同一个事务里，和
	// users(LOWER(username)) 上的唯一索引一起挡住并发注册
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("LOWER(username) = LOWER(?)", req.Username).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errUsernameTaken
		}
		return tx.Create(&user).Error
	})
	switch {
	case errors.Is(err, errUsernameTaken) ||
		(err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")):
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "Username already exists")
		return
	case err != nil:
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create user")
		return
	}

	util.Success(c, util.Response{
		"message": "registered",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"cash":     user.Cash.StringFixed(2),
		},
	})
}

// RegisterForm 注册表单描述（GET）
func (h *AuthHandler) RegisterForm(c *gin.Context) {
	util.Success(c, util.Response{
		"fields": []string{"username", "password", "confirmation"},
	})
}

// ---------- 登录 ----------

type loginReq struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Login verifies credentials and establishes a server-side session.
// Either a wrong username or a wrong password yields the same generic
// 403, so callers cannot enumerate accounts.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBind(&req); err != nil {
		util.Apology(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid form")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	if req.Username == "" {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must provide username")
		return
	}
	if req.Password == "" {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "must provide password")
		return
	}

	var user models.User
	// 用户名不区分大小写匹配
	if err := h.DB.Where("LOWER(username) = LOWER(?)", req.Username).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Apology(c, http.StatusForbidden, util.CodeAuth, "invalid username and/or password")
		} else {
			util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to query user")
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		util.Apology(c, http.StatusForbidden, util.CodeAuth, "invalid username and/or password")
		return
	}

	now := time.Now()
	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(h.TokenTTL),
	}
	if err := h.DB.Create(&session).Error; err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create session")
		return
	}

	token, err := util.GenerateToken(h.JWTSecret, user.ID, session.ID, h.TokenTTL)
	if err != nil {
		util.Apology(c, http.StatusInternalServerError, util.CodeServerErr, "failed to generate token")
		return
	}

	// 浏览器直接走 cookie，API 客户端用返回的 token
	c.SetCookie("st_token", token, int(h.TokenTTL.Seconds()), "/", "", false, true)

	util.Success(c, util.Response{
		"token":    token,
		"redirect": "/",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
	})
}

// LoginForm 登录表单描述（GET）
func (h *AuthHandler) LoginForm(c *gin.Context) {
	util.Success(c, util.Response{
		"fields": []string{"username", "password"},
	})
}

// ---------- 登出 ----------

// Logout revokes the current session (best effort), clears the cookie
// and redirects to the portfolio page. The route is public: logging
// out without a session is a no-op.
func (h *AuthHandler) Logout(c *gin.Context) {
	var tokenStr string
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenStr = parts[1]
		}
	}
	if tokenStr == "" {
		if cookie, err := c.Cookie("st_token"); err == nil {
			tokenStr = cookie
		}
	}

	if tokenStr != "" {
		if claims, err := util.ParseToken(h.JWTSecret, tokenStr); err == nil {
			_ = h.DB.Model(&models.Session{}).
				Where("id = ?", claims.SessionID).
				Update("revoked", true).Error
		}
	}

	c.SetCookie("st_token", "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/")
}
