package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"stock-trader/internal/config"
	"stock-trader/internal/database"
	"stock-trader/internal/models"
	"stock-trader/internal/quote"
	"stock-trader/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeQuoter 用内存表替代外部报价服务
type fakeQuoter struct {
	quotes map[string]*quote.Quote
}

func (f *fakeQuoter) Lookup(_ context.Context, symbol string) (*quote.Quote, error) {
	q, ok := f.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil, quote.ErrNotFound
	}
	return q, nil
}

func (f *fakeQuoter) set(symbol, name string, price string) {
	f.quotes[symbol] = &quote.Quote{
		Symbol: symbol,
		Name:   name,
		Price:  decimal.RequireFromString(price),
	}
}

func newFakeQuoter() *fakeQuoter {
	return &fakeQuoter{quotes: make(map[string]*quote.Quote)}
}

// newTestRouter 每个测试一个独立的 SQLite 库 + 完整路由。
// 走 database.Init，事务/锁行为与生产一致。
func newTestRouter(t *testing.T, quotes quote.Quoter) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Init(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "finance_test.db"),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireHours: 1},
		App:    config.AppSubConfig{StartingCash: "10000"},
	}
	return router.SetupRouter(cfg, db, quotes), db
}

func doPost(r *gin.Engine, path, token string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doGet(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, r *gin.Engine, username, password string) {
	t.Helper()
	w := doPost(r, "/register", "", url.Values{
		"username":     {username},
		"password":     {password},
		"confirmation": {password},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register %s: status = %d, body = %s", username, w.Code, w.Body.String())
	}
}

func login(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	w := doPost(r, "/login", "", url.Values{
		"username": {username},
		"password": {password},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d, body = %s", username, w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse login response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("login response contains no token")
	}
	return resp.Data.Token
}

func userByName(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		t.Fatalf("load user %s: %v", username, err)
	}
	return &user
}

func ledgerRows(t *testing.T, db *gorm.DB, userID uint) []models.Transaction {
	t.Helper()
	var rows []models.Transaction
	if err := db.Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return rows
}

func wantCash(t *testing.T, db *gorm.DB, username, want string) {
	t.Helper()
	user := userByName(t, db, username)
	if !user.Cash.Equal(decimal.RequireFromString(want)) {
		t.Errorf("cash(%s) = %s, want %s", username, user.Cash, want)
	}
}
